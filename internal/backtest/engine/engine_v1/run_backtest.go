package engine

import (
	"context"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// RunBacktest initializes a fresh engine with the given YAML configuration
// and datasource and runs it to completion. Convenience for programmatic
// callers that do not need result files or progress callbacks.
func RunBacktest(ctx context.Context, config string, ds datasource.MarketDataSource) (*types.BacktestResult, error) {
	e := NewBacktestEngineV1()
	if err := e.Initialize(config); err != nil {
		return nil, err
	}
	if err := e.SetDataSource(ds); err != nil {
		return nil, err
	}

	return e.Run(ctx, optional.None[engine.OnRebalanceCallback]())
}
