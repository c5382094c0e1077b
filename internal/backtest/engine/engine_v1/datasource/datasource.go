package datasource

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// PriceLookup is the result of an as-of price query. Lag reports how many
// days before the requested date the bar was observed; zero means an exact
// match.
type PriceLookup struct {
	Bar types.PriceBar
	Lag int
}

// MarketDataSource provides read access to historical prices and fundamental
// disclosures. Every query is as-of: implementations must never return data
// observed after the requested date.
type MarketDataSource interface {
	// Initialize opens the source against the given path (a DuckDB database
	// file, or a directory of parquet/csv files depending on implementation).
	Initialize(path string) error

	// GetPrice returns the bar for the exact (symbol, date) pair.
	GetPrice(ctx context.Context, symbol string, date time.Time) (types.PriceBar, error)

	// GetPriceAsOf returns the most recent bar at or before date, looking
	// back at most lookbackDays. The returned lag lets callers distinguish a
	// fresh price from a stale fallback.
	GetPriceAsOf(ctx context.Context, symbol string, date time.Time, lookbackDays int) (PriceLookup, error)

	// GetFundamentalsAsOf returns the latest fundamental snapshot whose
	// report date is at or before date.
	GetFundamentalsAsOf(ctx context.Context, symbol string, date time.Time) (optional.Option[types.FundamentalSnapshot], error)

	// ListSymbols returns every symbol present in the price data, sorted.
	ListSymbols(ctx context.Context) ([]string, error)

	// TradingDays returns the distinct price dates in [start, end], sorted.
	TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error)

	// ReadAllPrices streams every bar with a date in [start, end].
	ReadAllPrices(ctx context.Context, start, end time.Time) (chan types.PriceBar, error)

	// ReadAllFundamentals streams every snapshot reported at or before end.
	ReadAllFundamentals(ctx context.Context, end time.Time) (chan types.FundamentalSnapshot, error)

	// Count returns the number of price rows available.
	Count(ctx context.Context) (int, error)

	Close() error
}

// priceGap builds the recoverable error both sources return for an as-of
// price miss: a DataGapError carrying the symbol and date, wrapped with
// ErrCodePriceNotFound so callers can branch on either.
func priceGap(symbol string, date time.Time, format string, args ...any) error {
	return errors.Wrap(errors.ErrCodePriceNotFound, "price lookup failed",
		errors.NewDataGapErrorf(symbol, date, "price", format, args...))
}
