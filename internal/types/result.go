package types

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// EquityPoint is one mark-to-market observation of total portfolio value.
type EquityPoint struct {
	Date  time.Time `yaml:"date" json:"date"`
	Value float64   `yaml:"value" json:"value"`
}

// DrawdownPoint is one observation of the drawdown series. Drawdown is a
// percentage, zero or negative; Duration counts consecutive days below the
// running peak.
type DrawdownPoint struct {
	Date     time.Time `yaml:"date" json:"date"`
	Value    float64   `yaml:"value" json:"value"`
	Peak     float64   `yaml:"peak" json:"peak"`
	Drawdown float64   `yaml:"drawdown" json:"drawdown"`
	Duration int       `yaml:"duration" json:"duration"`
}

// PeriodReturn is the portfolio return over one calendar period, in percent.
type PeriodReturn struct {
	Period string  `yaml:"period" json:"period"`
	Return float64 `yaml:"return" json:"return"`
}

// DataGapNote records a tolerated data-quality event (stale price fallback,
// missing fundamentals) encountered during a run.
type DataGapNote struct {
	Date   time.Time `yaml:"date" json:"date"`
	Symbol string    `yaml:"symbol" json:"symbol"`
	Kind   string    `yaml:"kind" json:"kind"`
	Detail string    `yaml:"detail" json:"detail"`
}

// SymbolPerformance summarizes realized performance of a single symbol over
// the whole run, computed from FIFO-matched round trips.
type SymbolPerformance struct {
	Symbol            string  `yaml:"symbol" json:"symbol"`
	TotalReturn       float64 `yaml:"total_return" json:"total_return"`
	AnnualizedReturn  float64 `yaml:"annualized_return" json:"annualized_return"`
	TotalPnL          float64 `yaml:"total_pnl" json:"total_pnl"`
	Trades            int     `yaml:"trades" json:"trades"`
	WinRate           float64 `yaml:"win_rate" json:"win_rate"`
	HoldingPeriodDays int     `yaml:"holding_period_days" json:"holding_period_days"`
}

// PerformanceReport aggregates all computed statistics for a run.
//
// All ratio-like figures that represent percentages are plain numbers in
// percent terms: 12.34 means 12.34%.
type PerformanceReport struct {
	TotalReturn      float64 `yaml:"total_return" json:"total_return"`
	AnnualizedReturn float64 `yaml:"annualized_return" json:"annualized_return"`

	Volatility     float64 `yaml:"volatility" json:"volatility"`
	SharpeRatio    float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	SortinoRatio   float64 `yaml:"sortino_ratio" json:"sortino_ratio"`
	CalmarRatio    float64 `yaml:"calmar_ratio" json:"calmar_ratio"`
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	PeriodsPerYear float64 `yaml:"periods_per_year" json:"periods_per_year"`

	// ValueAtRisk95 is the 5th percentile of period returns in percent.
	// Skewness and Kurtosis (excess) describe the shape of the return
	// distribution and are unitless.
	ValueAtRisk95 float64 `yaml:"value_at_risk_95" json:"value_at_risk_95"`
	Skewness      float64 `yaml:"skewness" json:"skewness"`
	Kurtosis      float64 `yaml:"kurtosis" json:"kurtosis"`

	MaxDrawdown         float64    `yaml:"max_drawdown" json:"max_drawdown"`
	MaxDrawdownStart    *time.Time `yaml:"max_drawdown_start,omitempty" json:"max_drawdown_start,omitempty"`
	MaxDrawdownDate     *time.Time `yaml:"max_drawdown_date,omitempty" json:"max_drawdown_date,omitempty"`
	MaxDrawdownDuration int        `yaml:"max_drawdown_duration" json:"max_drawdown_duration"`
	RecoveryDate        *time.Time `yaml:"recovery_date,omitempty" json:"recovery_date,omitempty"`

	// WinRate is the share of periods in the returns series with a positive
	// return, in percent. TradeWinRate is the share of FIFO round trips
	// closed at a profit, in percent.
	WinRate             float64 `yaml:"win_rate" json:"win_rate"`
	TradeWinRate        float64 `yaml:"trade_win_rate" json:"trade_win_rate"`
	ProfitablePeriods   int     `yaml:"profitable_periods" json:"profitable_periods"`
	UnprofitablePeriods int     `yaml:"unprofitable_periods" json:"unprofitable_periods"`
	ProfitFactor        float64 `yaml:"profit_factor" json:"profit_factor"`
	TotalTrades         int     `yaml:"total_trades" json:"total_trades"`
	RoundTrips          int     `yaml:"round_trips" json:"round_trips"`

	BenchmarkReturn *float64 `yaml:"benchmark_return,omitempty" json:"benchmark_return,omitempty"`
	ExcessReturn    *float64 `yaml:"excess_return,omitempty" json:"excess_return,omitempty"`

	YearlyReturns []PeriodReturn `yaml:"yearly_returns" json:"yearly_returns"`

	TopWinners []SymbolPerformance `yaml:"top_winners" json:"top_winners"`
	TopLosers  []SymbolPerformance `yaml:"top_losers" json:"top_losers"`
}

// BacktestResult is the complete output of a single backtest run.
type BacktestResult struct {
	RunID     string    `yaml:"run_id" json:"run_id"`
	StartDate time.Time `yaml:"start_date" json:"start_date"`
	EndDate   time.Time `yaml:"end_date" json:"end_date"`

	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	FinalValue     float64 `yaml:"final_value" json:"final_value"`

	EquityCurve    []EquityPoint   `yaml:"equity_curve" json:"equity_curve"`
	DrawdownSeries []DrawdownPoint `yaml:"drawdown_series" json:"drawdown_series"`
	ReturnsSeries  []PeriodReturn  `yaml:"returns_series" json:"returns_series"`

	RebalanceDates []time.Time         `yaml:"rebalance_dates" json:"rebalance_dates"`
	Transactions   []Transaction       `yaml:"transactions" json:"transactions"`
	Snapshots      []PortfolioSnapshot `yaml:"snapshots" json:"snapshots"`
	DataGaps       []DataGapNote       `yaml:"data_gaps" json:"data_gaps"`

	Report PerformanceReport `yaml:"report" json:"report"`
}

// WriteResult serializes the result to YAML at the given path, creating
// parent directories as needed.
func (r *BacktestResult) WriteResult(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create results folder", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to marshal result", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write result", err)
	}

	return nil
}
