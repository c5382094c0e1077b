package universe

import (
	"sort"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// RankedCandidate is a candidate with its composite ranking score. Higher
// scores rank better regardless of each metric's sort order.
type RankedCandidate struct {
	Candidate
	Score float64
}

// RankingEngine orders eligible candidates by the configured metrics and
// selects the top N.
type RankingEngine struct {
	config RankingConfig
}

func NewRankingEngine(config RankingConfig) *RankingEngine {
	return &RankingEngine{config: config}
}

// Rank scores candidates and returns the top N, best first. Candidates
// missing any ranking metric are excluded before scoring and reported as
// excluded symbols. Ties break on symbol, so results are deterministic.
//
// A single metric ranks on raw values. Multiple metrics are min-max
// normalized to [0, 1] per metric across the scored set, flipped for
// ascending metrics so that better is always higher, then combined as a
// weighted sum.
func (r *RankingEngine) Rank(candidates []Candidate) ([]RankedCandidate, []string, error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}

	scored := make([]RankedCandidate, 0, len(candidates))
	var excluded []string

	for _, c := range candidates {
		if r.missingAnyMetric(c) {
			excluded = append(excluded, c.Symbol)
			continue
		}
		scored = append(scored, RankedCandidate{Candidate: c})
	}
	sort.Strings(excluded)

	if len(scored) == 0 {
		return nil, excluded, nil
	}

	if len(r.config.Metrics) == 1 {
		r.scoreSingle(scored)
	} else {
		if err := r.scoreComposite(scored); err != nil {
			return nil, nil, err
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Symbol < scored[j].Symbol
	})

	if len(scored) > r.config.TopN {
		scored = scored[:r.config.TopN]
	}

	return scored, excluded, nil
}

func (r *RankingEngine) missingAnyMetric(c Candidate) bool {
	for _, m := range r.config.Metrics {
		if c.Fundamentals.Metric(m.Name).IsNone() {
			return true
		}
	}

	return false
}

// scoreSingle uses the raw metric value, negated for ascending metrics so
// the final sort direction stays uniform.
func (r *RankingEngine) scoreSingle(scored []RankedCandidate) {
	m := r.config.Metrics[0]
	for i := range scored {
		v := scored[i].Fundamentals.Metric(m.Name).Unwrap()
		if m.Order == SortOrderAscending {
			v = -v
		}
		scored[i].Score = v
	}
}

func (r *RankingEngine) scoreComposite(scored []RankedCandidate) error {
	totalWeight := 0.0
	for _, m := range r.config.Metrics {
		totalWeight += m.Weight
	}
	if totalWeight <= 0 {
		return errors.New(errors.ErrCodeRankingFailed, "composite ranking requires positive metric weights")
	}

	for _, m := range r.config.Metrics {
		min, max := scored[0].Fundamentals.Metric(m.Name).Unwrap(), scored[0].Fundamentals.Metric(m.Name).Unwrap()
		for _, c := range scored[1:] {
			v := c.Fundamentals.Metric(m.Name).Unwrap()
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}

		span := max - min
		for i := range scored {
			v := scored[i].Fundamentals.Metric(m.Name).Unwrap()

			// All values equal: the metric carries no information, every
			// candidate gets the midpoint.
			norm := 0.5
			if span > 0 {
				norm = (v - min) / span
			}
			if m.Order == SortOrderAscending {
				norm = 1 - norm
			}

			scored[i].Score += norm * (m.Weight / totalWeight)
		}
	}

	return nil
}
