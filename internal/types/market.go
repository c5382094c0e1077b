package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// PriceBar is a single daily bar of historical price data for one symbol.
// Exactly one bar exists per (symbol, date).
type PriceBar struct {
	Symbol        string    `yaml:"symbol" json:"symbol"`
	Date          time.Time `yaml:"date" json:"date"`
	Open          float64   `yaml:"open" json:"open"`
	High          float64   `yaml:"high" json:"high"`
	Low           float64   `yaml:"low" json:"low"`
	Close         float64   `yaml:"close" json:"close"`
	AdjustedClose float64   `yaml:"adjusted_close" json:"adjusted_close"`
	Volume        int64     `yaml:"volume" json:"volume"`
}

// ExecutionPrice returns the price used for valuation and simulated fills:
// the adjusted close when available, otherwise the raw close.
func (p PriceBar) ExecutionPrice() float64 {
	if p.AdjustedClose > 0 {
		return p.AdjustedClose
	}

	return p.Close
}

// PeriodType identifies the reporting period of a fundamental disclosure.
type PeriodType string

const (
	PeriodTypeQuarterly PeriodType = "Q"
	PeriodTypeAnnual    PeriodType = "A"
)

// Metric names usable for filtering, ranking and weighting.
const (
	MetricRevenue      string = "revenue"
	MetricPAT          string = "pat"
	MetricEBITDA       string = "ebitda"
	MetricMarketCap    string = "market_cap"
	MetricROE          string = "roe"
	MetricROCE         string = "roce"
	MetricPERatio      string = "pe_ratio"
	MetricPBRatio      string = "pb_ratio"
	MetricDebtEquity   string = "debt_equity_ratio"
	MetricCurrentRatio string = "current_ratio"
)

// FundamentalSnapshot is a point-in-time fundamental disclosure for a symbol.
// Numeric fields are optional because real filings routinely omit line items;
// a missing value must never be treated as zero.
type FundamentalSnapshot struct {
	Symbol     string     `yaml:"symbol" json:"symbol"`
	ReportDate time.Time  `yaml:"report_date" json:"report_date"`
	PeriodType PeriodType `yaml:"period_type" json:"period_type"`

	// Profit & loss
	Revenue optional.Option[float64] `yaml:"revenue" json:"revenue"`
	PAT     optional.Option[float64] `yaml:"pat" json:"pat"`
	EBITDA  optional.Option[float64] `yaml:"ebitda" json:"ebitda"`

	// Balance sheet
	ShareholdersEquity optional.Option[float64] `yaml:"shareholders_equity" json:"shareholders_equity"`
	TotalDebt          optional.Option[float64] `yaml:"total_debt" json:"total_debt"`

	// Market
	MarketCap optional.Option[float64] `yaml:"market_cap" json:"market_cap"`

	// Ratios
	ROE             optional.Option[float64] `yaml:"roe" json:"roe"`
	ROCE            optional.Option[float64] `yaml:"roce" json:"roce"`
	PERatio         optional.Option[float64] `yaml:"pe_ratio" json:"pe_ratio"`
	PBRatio         optional.Option[float64] `yaml:"pb_ratio" json:"pb_ratio"`
	DebtEquityRatio optional.Option[float64] `yaml:"debt_equity_ratio" json:"debt_equity_ratio"`
	CurrentRatio    optional.Option[float64] `yaml:"current_ratio" json:"current_ratio"`
}

// Metric returns the named metric value, or None when the metric is unknown
// or absent from this snapshot.
func (f FundamentalSnapshot) Metric(name string) optional.Option[float64] {
	switch name {
	case MetricRevenue:
		return f.Revenue
	case MetricPAT:
		return f.PAT
	case MetricEBITDA:
		return f.EBITDA
	case MetricMarketCap:
		return f.MarketCap
	case MetricROE:
		return f.ROE
	case MetricROCE:
		return f.ROCE
	case MetricPERatio:
		return f.PERatio
	case MetricPBRatio:
		return f.PBRatio
	case MetricDebtEquity:
		return f.DebtEquityRatio
	case MetricCurrentRatio:
		return f.CurrentRatio
	default:
		return optional.None[float64]()
	}
}

// KnownMetric reports whether name refers to a metric this package can resolve.
func KnownMetric(name string) bool {
	switch name {
	case MetricRevenue, MetricPAT, MetricEBITDA, MetricMarketCap,
		MetricROE, MetricROCE, MetricPERatio, MetricPBRatio,
		MetricDebtEquity, MetricCurrentRatio:
		return true
	default:
		return false
	}
}
