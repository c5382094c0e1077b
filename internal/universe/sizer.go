package universe

import (
	"sort"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// PositionSizer converts selected candidates into target portfolio weights.
type PositionSizer struct {
	config SizingConfig
}

func NewPositionSizer(config SizingConfig) *PositionSizer {
	return &PositionSizer{config: config}
}

// TargetWeights returns one weight per selected symbol. Weights are
// fractions that sum to 1. When a position cap is configured, positions
// above the cap are clipped and the overflow is redistributed across the
// uncapped positions proportionally; if every position ends up capped the
// weights fall back to equal.
func (s *PositionSizer) TargetWeights(selected []RankedCandidate) (map[string]float64, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return map[string]float64{}, nil
	}

	weights := make(map[string]float64, len(selected))

	switch s.config.Scheme {
	case WeightingEqual:
		w := 1.0 / float64(len(selected))
		for _, c := range selected {
			weights[c.Symbol] = w
		}

	case WeightingMarketCap:
		if err := s.proportional(selected, types.MetricMarketCap, weights); err != nil {
			return nil, err
		}

	case WeightingMetric:
		if err := s.proportional(selected, s.config.Metric, weights); err != nil {
			return nil, err
		}
	}

	if s.config.MaxPositionWeight > 0 {
		s.applyCap(weights)
	}

	return weights, nil
}

// proportional weights each symbol by its share of the metric total.
// Non-positive values are clipped to zero weight and the remaining weight
// is spread across the positive-metric symbols. A selected symbol missing
// the metric, or a selection with no positive value at all, is a weighting
// failure rather than a silent fallback.
func (s *PositionSizer) proportional(selected []RankedCandidate, metric string, weights map[string]float64) error {
	total := 0.0
	values := make(map[string]float64, len(selected))

	for _, c := range selected {
		v := c.Fundamentals.Metric(metric)
		if v.IsNone() {
			return errors.Newf(errors.ErrCodeWeightingFailed, "%s is missing weighting metric %s", c.Symbol, metric)
		}
		value := v.Unwrap()
		if value < 0 {
			value = 0
		}
		values[c.Symbol] = value
		total += value
	}

	if total <= 0 {
		return errors.Newf(errors.ErrCodeWeightingFailed, "weighting metric %s has no positive values across selection", metric)
	}

	for symbol, value := range values {
		weights[symbol] = value / total
	}

	return nil
}

// applyCap iteratively clips weights above the cap and renormalizes the
// remainder until no weight exceeds the cap.
func (s *PositionSizer) applyCap(weights map[string]float64) {
	maxWeight := s.config.MaxPositionWeight

	// Not enough positions to absorb the overflow: equal weights are the
	// closest feasible allocation.
	if float64(len(weights))*maxWeight < 1.0 {
		w := 1.0 / float64(len(weights))
		for symbol := range weights {
			weights[symbol] = w
		}
		return
	}

	symbols := make([]string, 0, len(weights))
	for symbol := range weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	capped := make(map[string]bool, len(weights))
	for {
		overflow := 0.0
		uncappedTotal := 0.0
		for _, symbol := range symbols {
			if capped[symbol] {
				continue
			}
			if weights[symbol] > maxWeight {
				overflow += weights[symbol] - maxWeight
				weights[symbol] = maxWeight
				capped[symbol] = true
			} else {
				uncappedTotal += weights[symbol]
			}
		}

		if overflow == 0 || uncappedTotal == 0 {
			return
		}

		scale := (uncappedTotal + overflow) / uncappedTotal
		for _, symbol := range symbols {
			if !capped[symbol] {
				weights[symbol] *= scale
			}
		}
	}
}
