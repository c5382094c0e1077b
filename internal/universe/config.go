package universe

import (
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// FilterConfig holds the eligibility thresholds applied to every symbol
// before ranking. Every threshold is optional; unset thresholds are not
// applied. A symbol missing a metric that a set threshold needs is excluded.
type FilterConfig struct {
	MinMarketCap    optional.Option[float64] `json:"min_market_cap,omitempty"`
	MaxMarketCap    optional.Option[float64] `json:"max_market_cap,omitempty"`
	MinRevenue      optional.Option[float64] `json:"min_revenue,omitempty"`
	MinPAT          optional.Option[float64] `json:"min_pat,omitempty"`
	MinROE          optional.Option[float64] `json:"min_roe,omitempty"`
	MinROCE         optional.Option[float64] `json:"min_roce,omitempty"`
	MinPERatio      optional.Option[float64] `json:"min_pe_ratio,omitempty"`
	MaxPERatio      optional.Option[float64] `json:"max_pe_ratio,omitempty"`
	MaxPBRatio      optional.Option[float64] `json:"max_pb_ratio,omitempty"`
	MinDebtEquity   optional.Option[float64] `json:"min_debt_equity,omitempty"`
	MaxDebtEquity   optional.Option[float64] `json:"max_debt_equity,omitempty"`
	MinCurrentRatio optional.Option[float64] `json:"min_current_ratio,omitempty"`
}

// rawFilterConfig mirrors FilterConfig with pointer fields because yaml.v2
// cannot decode into Option values directly.
type rawFilterConfig struct {
	MinMarketCap    *float64 `yaml:"min_market_cap"`
	MaxMarketCap    *float64 `yaml:"max_market_cap"`
	MinRevenue      *float64 `yaml:"min_revenue"`
	MinPAT          *float64 `yaml:"min_pat"`
	MinROE          *float64 `yaml:"min_roe"`
	MinROCE         *float64 `yaml:"min_roce"`
	MinPERatio      *float64 `yaml:"min_pe_ratio"`
	MaxPERatio      *float64 `yaml:"max_pe_ratio"`
	MaxPBRatio      *float64 `yaml:"max_pb_ratio"`
	MinDebtEquity   *float64 `yaml:"min_debt_equity"`
	MaxDebtEquity   *float64 `yaml:"max_debt_equity"`
	MinCurrentRatio *float64 `yaml:"min_current_ratio"`
}

func (c *FilterConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawFilterConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	c.MinMarketCap = optional.FromNillable(raw.MinMarketCap)
	c.MaxMarketCap = optional.FromNillable(raw.MaxMarketCap)
	c.MinRevenue = optional.FromNillable(raw.MinRevenue)
	c.MinPAT = optional.FromNillable(raw.MinPAT)
	c.MinROE = optional.FromNillable(raw.MinROE)
	c.MinROCE = optional.FromNillable(raw.MinROCE)
	c.MinPERatio = optional.FromNillable(raw.MinPERatio)
	c.MaxPERatio = optional.FromNillable(raw.MaxPERatio)
	c.MaxPBRatio = optional.FromNillable(raw.MaxPBRatio)
	c.MinDebtEquity = optional.FromNillable(raw.MinDebtEquity)
	c.MaxDebtEquity = optional.FromNillable(raw.MaxDebtEquity)
	c.MinCurrentRatio = optional.FromNillable(raw.MinCurrentRatio)

	return nil
}

// threshold is one bound on a metric.
type threshold struct {
	metric string
	limit  float64
	// isFloor: metric must be >= limit; otherwise metric must be <= limit.
	isFloor bool
}

func (c FilterConfig) thresholds() []threshold {
	var out []threshold
	appendIf := func(v optional.Option[float64], metric string, isFloor bool) {
		if v.IsSome() {
			out = append(out, threshold{metric: metric, limit: v.Unwrap(), isFloor: isFloor})
		}
	}

	appendIf(c.MinMarketCap, types.MetricMarketCap, true)
	appendIf(c.MaxMarketCap, types.MetricMarketCap, false)
	appendIf(c.MinRevenue, types.MetricRevenue, true)
	appendIf(c.MinPAT, types.MetricPAT, true)
	appendIf(c.MinROE, types.MetricROE, true)
	appendIf(c.MinROCE, types.MetricROCE, true)
	appendIf(c.MinPERatio, types.MetricPERatio, true)
	appendIf(c.MaxPERatio, types.MetricPERatio, false)
	appendIf(c.MaxPBRatio, types.MetricPBRatio, false)
	appendIf(c.MinDebtEquity, types.MetricDebtEquity, true)
	appendIf(c.MaxDebtEquity, types.MetricDebtEquity, false)
	appendIf(c.MinCurrentRatio, types.MetricCurrentRatio, true)

	return out
}

// SortOrder states whether larger or smaller metric values rank better.
type SortOrder string

const (
	SortOrderDescending SortOrder = "desc"
	SortOrderAscending  SortOrder = "asc"
)

// RankingMetric is one component of the ranking score.
type RankingMetric struct {
	Name   string    `yaml:"name" json:"name" validate:"required"`
	Weight float64   `yaml:"weight" json:"weight,omitempty"`
	Order  SortOrder `yaml:"order" json:"order,omitempty" jsonschema:"enum=desc,enum=asc"`
}

// RankingConfig describes how eligible symbols are scored and how many make
// the portfolio.
type RankingConfig struct {
	Metrics []RankingMetric `yaml:"metrics" json:"metrics" validate:"required,min=1,dive"`
	TopN    int             `yaml:"top_n" json:"top_n" validate:"required,gt=0"`
}

// WeightingScheme chooses how capital is split across selected symbols.
type WeightingScheme string

const (
	WeightingEqual     WeightingScheme = "equal"
	WeightingMarketCap WeightingScheme = "market_cap"
	WeightingMetric    WeightingScheme = "metric"
)

// SizingConfig describes position weighting.
type SizingConfig struct {
	Scheme WeightingScheme `yaml:"scheme" json:"scheme" validate:"required,oneof=equal market_cap metric" jsonschema:"enum=equal,enum=market_cap,enum=metric"`
	// Metric drives weights when Scheme is "metric".
	Metric string `yaml:"metric" json:"metric,omitempty"`
	// MaxPositionWeight caps any single position, as a fraction of the
	// portfolio. Zero means uncapped.
	MaxPositionWeight float64 `yaml:"max_position_weight" json:"max_position_weight,omitempty" validate:"gte=0,lte=1"`
}

// Validate checks the ranking configuration against the known metric set.
func (c RankingConfig) Validate() error {
	if len(c.Metrics) == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "ranking requires at least one metric")
	}
	if c.TopN <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "ranking top_n must be positive")
	}

	for _, m := range c.Metrics {
		if !types.KnownMetric(m.Name) {
			return errors.Newf(errors.ErrCodeUnknownMetric, "unknown ranking metric: %s", m.Name)
		}
		if m.Weight < 0 {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "ranking metric %s has negative weight", m.Name)
		}
		switch m.Order {
		case SortOrderAscending, SortOrderDescending, "":
		default:
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "ranking metric %s has invalid order %q", m.Name, m.Order)
		}
	}

	return nil
}

// Validate checks the sizing configuration.
func (c SizingConfig) Validate() error {
	switch c.Scheme {
	case WeightingEqual, WeightingMarketCap:
	case WeightingMetric:
		if !types.KnownMetric(c.Metric) {
			return errors.Newf(errors.ErrCodeUnknownMetric, "unknown weighting metric: %s", c.Metric)
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidWeighting, "unknown weighting scheme: %s", c.Scheme)
	}

	if c.MaxPositionWeight < 0 || c.MaxPositionWeight > 1 {
		return errors.New(errors.ErrCodeInvalidWeighting, "max_position_weight must be within [0, 1]")
	}

	return nil
}
