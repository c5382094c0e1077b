package engine

import (
	"context"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// OnRebalanceCallback is invoked after every completed rebalance step.
// current and total describe scheduler progress; snapshot is the portfolio
// state after the step. Returning an error aborts the run.
type OnRebalanceCallback func(current int, total int, snapshot types.PortfolioSnapshot) error

// Engine runs one strategy backtest end to end: screen, rank, size, trade,
// mark to market, report.
type Engine interface {
	// Initialize parses and validates a YAML strategy configuration.
	Initialize(config string) error
	// SetDataSource sets the market data backing the run.
	SetDataSource(ds datasource.MarketDataSource) error
	// SetResultsFolder sets an output directory. When set, Run writes
	// result.yaml and the transaction ledger there.
	SetResultsFolder(folder string) error
	// Run executes the backtest. The context cancels the run between
	// rebalance steps. The callback, when present, observes every step.
	Run(ctx context.Context, onRebalance optional.Option[OnRebalanceCallback]) (*types.BacktestResult, error)
	// GetConfigSchema returns the JSON schema of the configuration format.
	GetConfigSchema() (string, error)
}
