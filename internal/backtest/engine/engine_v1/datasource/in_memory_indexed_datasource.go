package datasource

import (
	"context"
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// InMemoryIndexedDataSource keeps all bars and fundamentals in per-symbol
// slices sorted by date, so as-of lookups are binary searches instead of SQL
// round trips. The engine preloads one from the backing source before the
// simulation loop; tests populate one directly with AddPrice/AddFundamental.
type InMemoryIndexedDataSource struct {
	prices       map[string][]types.PriceBar
	priceIndex   map[string]map[string]int
	fundamentals map[string][]types.FundamentalSnapshot
	symbols      []string
	tradingDays  []time.Time
	logger       *logger.Logger
}

func NewInMemoryIndexedDataSource(log *logger.Logger) *InMemoryIndexedDataSource {
	return &InMemoryIndexedDataSource{
		prices:       make(map[string][]types.PriceBar),
		priceIndex:   make(map[string]map[string]int),
		fundamentals: make(map[string][]types.FundamentalSnapshot),
		logger:       log,
	}
}

// LoadFromSource drains the backing source's price and fundamental streams
// for [start, end] into the index.
func (d *InMemoryIndexedDataSource) LoadFromSource(ctx context.Context, src MarketDataSource, start, end time.Time) error {
	priceCh, err := src.ReadAllPrices(ctx, start, end)
	if err != nil {
		return err
	}
	for bar := range priceCh {
		d.AddPrice(bar)
	}

	fundamentalCh, err := src.ReadAllFundamentals(ctx, end)
	if err != nil {
		return err
	}
	for snap := range fundamentalCh {
		d.AddFundamental(snap)
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestCancelled, "preload cancelled", err)
	}

	d.buildIndex()
	return nil
}

// AddPrice appends a bar. Call buildIndex (or LoadFromSource) before querying.
func (d *InMemoryIndexedDataSource) AddPrice(bar types.PriceBar) {
	d.prices[bar.Symbol] = append(d.prices[bar.Symbol], bar)
}

// AddFundamental appends a snapshot.
func (d *InMemoryIndexedDataSource) AddFundamental(snap types.FundamentalSnapshot) {
	d.fundamentals[snap.Symbol] = append(d.fundamentals[snap.Symbol], snap)
}

// BuildIndex sorts the per-symbol series and rebuilds the exact-date and
// trading-day indexes. Idempotent.
func (d *InMemoryIndexedDataSource) BuildIndex() {
	d.buildIndex()
}

func (d *InMemoryIndexedDataSource) buildIndex() {
	d.symbols = d.symbols[:0]
	daySet := make(map[string]time.Time)

	for symbol, bars := range d.prices {
		sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
		index := make(map[string]int, len(bars))
		for i, bar := range bars {
			key := bar.Date.Format(time.DateOnly)
			index[key] = i
			daySet[key] = bar.Date
		}
		d.priceIndex[symbol] = index
		d.symbols = append(d.symbols, symbol)
	}
	sort.Strings(d.symbols)

	d.tradingDays = d.tradingDays[:0]
	for _, day := range daySet {
		d.tradingDays = append(d.tradingDays, day)
	}
	sort.Slice(d.tradingDays, func(i, j int) bool { return d.tradingDays[i].Before(d.tradingDays[j]) })

	for _, snaps := range d.fundamentals {
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].ReportDate.Before(snaps[j].ReportDate) })
	}
}

func (d *InMemoryIndexedDataSource) Initialize(path string) error {
	return nil
}

func (d *InMemoryIndexedDataSource) GetPrice(ctx context.Context, symbol string, date time.Time) (types.PriceBar, error) {
	index, ok := d.priceIndex[symbol]
	if !ok {
		return types.PriceBar{}, errors.Newf(errors.ErrCodePriceNotFound, "no price data for %s", symbol)
	}

	i, ok := index[date.Format(time.DateOnly)]
	if !ok {
		return types.PriceBar{}, errors.Newf(errors.ErrCodePriceNotFound, "no price for %s on %s", symbol, date.Format(time.DateOnly))
	}

	return d.prices[symbol][i], nil
}

func (d *InMemoryIndexedDataSource) GetPriceAsOf(ctx context.Context, symbol string, date time.Time, lookbackDays int) (PriceLookup, error) {
	bars := d.prices[symbol]
	if len(bars) == 0 {
		return PriceLookup{}, priceGap(symbol, date, "no price data for %s", symbol)
	}

	// First bar strictly after the target date.
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(date) })
	if i == 0 {
		return PriceLookup{}, priceGap(symbol, date,
			"no price for %s at or before %s", symbol, date.Format(time.DateOnly))
	}

	bar := bars[i-1]
	lag := daysBetween(bar.Date, date)
	if lag > lookbackDays {
		return PriceLookup{}, priceGap(symbol, date,
			"no price for %s within %d days of %s", symbol, lookbackDays, date.Format(time.DateOnly))
	}

	return PriceLookup{Bar: bar, Lag: lag}, nil
}

func (d *InMemoryIndexedDataSource) GetFundamentalsAsOf(ctx context.Context, symbol string, date time.Time) (optional.Option[types.FundamentalSnapshot], error) {
	snaps := d.fundamentals[symbol]
	if len(snaps) == 0 {
		return optional.None[types.FundamentalSnapshot](), nil
	}

	i := sort.Search(len(snaps), func(i int) bool { return snaps[i].ReportDate.After(date) })
	if i == 0 {
		return optional.None[types.FundamentalSnapshot](), nil
	}

	return optional.Some(snaps[i-1]), nil
}

func (d *InMemoryIndexedDataSource) ListSymbols(ctx context.Context) ([]string, error) {
	out := make([]string, len(d.symbols))
	copy(out, d.symbols)
	return out, nil
}

func (d *InMemoryIndexedDataSource) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	var days []time.Time
	for _, day := range d.tradingDays {
		if day.Before(start) || day.After(end) {
			continue
		}
		days = append(days, day)
	}

	return days, nil
}

func (d *InMemoryIndexedDataSource) ReadAllPrices(ctx context.Context, start, end time.Time) (chan types.PriceBar, error) {
	out := make(chan types.PriceBar, 1024)
	go func() {
		defer close(out)
		for _, symbol := range d.symbols {
			for _, bar := range d.prices[symbol] {
				if bar.Date.Before(start) || bar.Date.After(end) {
					continue
				}
				select {
				case out <- bar:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (d *InMemoryIndexedDataSource) ReadAllFundamentals(ctx context.Context, end time.Time) (chan types.FundamentalSnapshot, error) {
	reported := make([]string, 0, len(d.fundamentals))
	for symbol := range d.fundamentals {
		reported = append(reported, symbol)
	}
	sort.Strings(reported)

	out := make(chan types.FundamentalSnapshot, 256)
	go func() {
		defer close(out)
		for _, symbol := range reported {
			for _, snap := range d.fundamentals[symbol] {
				if snap.ReportDate.After(end) {
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (d *InMemoryIndexedDataSource) Count(ctx context.Context) (int, error) {
	count := 0
	for _, bars := range d.prices {
		count += len(bars)
	}

	return count, nil
}

func (d *InMemoryIndexedDataSource) Close() error {
	return nil
}
