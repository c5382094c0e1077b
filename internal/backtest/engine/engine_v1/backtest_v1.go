package engine

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/metrics"
	"github.com/rxtech-lab/argo-backtest/internal/schedule"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/universe"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// BacktestEngineV1 runs a fundamentals-driven rebalancing strategy over
// daily bars: screen the universe, rank it, size positions, trade on the
// schedule, and mark the portfolio to market every trading day.
type BacktestEngineV1 struct {
	config        BacktestConfig
	initialized   bool
	datasource    datasource.MarketDataSource
	resultsFolder string
	log           *logger.Logger
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{}
}

func (e *BacktestEngineV1) Initialize(config string) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	e.log = log

	parsed, err := NewBacktestConfigFromYaml(config)
	if err != nil {
		return err
	}

	e.config = parsed
	e.initialized = true
	e.log.Info("backtest engine initialized",
		zap.Time("start_date", parsed.StartDate),
		zap.Time("end_date", parsed.EndDate),
		zap.String("rebalance_frequency", string(parsed.RebalanceFrequency)))

	return nil
}

func (e *BacktestEngineV1) SetDataSource(ds datasource.MarketDataSource) error {
	if ds == nil {
		return errors.New(errors.ErrCodeBacktestNoDatasource, "datasource must not be nil")
	}
	e.datasource = ds

	return nil
}

func (e *BacktestEngineV1) SetResultsFolder(folder string) error {
	e.resultsFolder = folder

	return nil
}

func (e *BacktestEngineV1) GetConfigSchema() (string, error) {
	return GetConfigSchema()
}

// run bundles the mutable state of one Run invocation.
type run struct {
	data      *datasource.InMemoryIndexedDataSource
	portfolio *Portfolio
	ledger    *Ledger

	filter *universe.Filter
	ranker *universe.RankingEngine
	sizer  *universe.PositionSizer

	equity      []types.EquityPoint
	snapshots   []types.PortfolioSnapshot
	gaps        []types.DataGapNote
	scheduled   []time.Time
	prevTargets map[string]float64
	everTraded  bool
}

func (e *BacktestEngineV1) Run(ctx context.Context, onRebalance optional.Option[engine.OnRebalanceCallback]) (*types.BacktestResult, error) {
	if !e.initialized {
		return nil, errors.New(errors.ErrCodeBacktestNotInitialized, "engine is not initialized")
	}
	if e.datasource == nil {
		return nil, errors.New(errors.ErrCodeBacktestNoDatasource, "no datasource configured")
	}

	r, err := e.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer r.ledger.Close()

	days, err := r.data.TradingDays(ctx, e.config.StartDate, e.config.EndDate)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, errors.New(errors.ErrCodeNoDataFound, "no trading days in the configured date range")
	}

	scheduled, err := schedule.Dates(e.config.StartDate, e.config.EndDate, e.config.RebalanceFrequency)
	if err != nil {
		return nil, err
	}
	r.scheduled = scheduled

	// The end-date anchor is the closing liquidation, handled after the
	// daily loop; only interior anchors trade into new portfolios.
	anchors := scheduled[:len(scheduled)-1]
	totalSteps := len(scheduled)
	stepIdx := 0

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBacktestCancelled, "backtest cancelled", err)
		}

		for stepIdx < len(anchors) && !anchors[stepIdx].After(day) {
			if err := e.rebalanceStep(ctx, r, day); err != nil {
				return nil, err
			}
			stepIdx++

			snapshot := r.snapshots[len(r.snapshots)-1]
			if err := notify(onRebalance, stepIdx, totalSteps, snapshot); err != nil {
				return nil, err
			}
		}

		value, err := e.markToMarket(ctx, r, day)
		if err != nil {
			return nil, err
		}
		r.equity = append(r.equity, types.EquityPoint{Date: day, Value: value})
	}

	finalDay := days[len(days)-1]
	if err := e.liquidate(ctx, r, finalDay); err != nil {
		return nil, err
	}
	r.equity[len(r.equity)-1] = types.EquityPoint{Date: finalDay, Value: r.portfolio.Value(nil)}

	if err := r.portfolio.Finalize(); err != nil {
		return nil, err
	}
	if err := notify(onRebalance, totalSteps, totalSteps, r.snapshots[len(r.snapshots)-1]); err != nil {
		return nil, err
	}

	return e.assemble(ctx, r)
}

// prepare loads all market data into memory and builds the run components.
func (e *BacktestEngineV1) prepare(ctx context.Context) (*run, error) {
	data := datasource.NewInMemoryIndexedDataSource(e.log)

	// Preload starts before the run so the first day can fall back to
	// earlier prices.
	preloadStart := e.config.StartDate.AddDate(0, 0, -e.config.PriceLookbackMaxDays)
	if err := data.LoadFromSource(ctx, e.datasource, preloadStart, e.config.EndDate); err != nil {
		return nil, err
	}

	count, err := data.Count(ctx)
	if err != nil {
		return nil, err
	}
	e.log.Info("market data preloaded", zap.Int("price_rows", count))

	ledger, err := NewLedger(e.log)
	if err != nil {
		return nil, err
	}

	portfolio := NewPortfolio()
	if err := portfolio.Init(e.config.InitialCapital); err != nil {
		ledger.Close()
		return nil, err
	}

	return &run{
		data:        data,
		portfolio:   portfolio,
		ledger:      ledger,
		filter:      universe.NewFilter(e.config.Filter, e.log),
		ranker:      universe.NewRankingEngine(e.config.Ranking),
		sizer:       universe.NewPositionSizer(e.config.Sizing),
		prevTargets: map[string]float64{},
	}, nil
}

// rebalanceStep screens, ranks and sizes as of the given day, then trades
// the portfolio into the target weights. Trades of one step are recorded as
// a single atomic ledger batch.
func (e *BacktestEngineV1) rebalanceStep(ctx context.Context, r *run, day time.Time) error {
	candidates, gaps, err := r.filter.Eligible(ctx, r.data, day)
	if err != nil {
		return err
	}
	r.gaps = append(r.gaps, gaps...)

	ranked, excluded, err := r.ranker.Rank(candidates)
	if err != nil {
		return err
	}
	for _, symbol := range excluded {
		r.gaps = append(r.gaps, types.DataGapNote{
			Date:   day,
			Symbol: symbol,
			Kind:   "fundamentals",
			Detail: "missing ranking metric, excluded from selection",
		})
	}

	targets, err := r.sizer.TargetWeights(ranked)
	if err != nil {
		return err
	}

	prices := e.resolvePrices(ctx, r, day, unionSymbols(r.portfolio.Symbols(), keys(targets)))
	for symbol := range targets {
		if _, ok := prices[symbol]; !ok {
			// No tradable price: the symbol sits this period out and its
			// weight stays in cash.
			delete(targets, symbol)
		}
	}

	if e.shouldSkip(r, targets) {
		e.log.Debug("rebalance skipped, target weights unchanged", zap.Time("date", day))
		r.snapshots = append(r.snapshots, r.portfolio.Snapshot(day, prices))
		return nil
	}

	var batch []types.Transaction

	// Sell everything first so the full portfolio value is investable.
	held := r.portfolio.Symbols()
	sort.Strings(held)
	for _, symbol := range held {
		price, ok := prices[symbol]
		if !ok {
			// Cannot price the position; it is carried to the next period.
			continue
		}
		h, _ := r.portfolio.Holding(symbol)

		reason := types.ReasonRebalance
		if _, wanted := targets[symbol]; !wanted {
			reason = types.ReasonUniverseExit
		}

		tx, err := r.portfolio.Sell(day, symbol, h.Quantity, price, reason, prices)
		if err != nil {
			return err
		}
		batch = append(batch, tx)
	}

	buyReason := types.ReasonRebalance
	if !r.everTraded {
		buyReason = types.ReasonInitialConstruction
	}

	investable := r.portfolio.Value(prices)
	for _, symbol := range sortedKeys(targets) {
		price := prices[symbol]
		quantity := int64(math.Floor(targets[symbol] * investable / price))
		if quantity <= 0 {
			continue
		}

		// Rounding can leave the floor quantity slightly short of cash.
		if cost := price * float64(quantity); cost > r.portfolio.Cash() {
			quantity = int64(math.Floor(r.portfolio.Cash() / price))
			if quantity <= 0 {
				continue
			}
		}

		tx, err := r.portfolio.Buy(day, symbol, quantity, price, buyReason, prices)
		if err != nil {
			return err
		}
		batch = append(batch, tx)
	}

	if err := r.ledger.RecordBatch(batch); err != nil {
		return err
	}
	if len(batch) > 0 {
		r.everTraded = true
	}

	r.prevTargets = targets
	r.snapshots = append(r.snapshots, r.portfolio.Snapshot(day, prices))
	e.log.Info("rebalanced",
		zap.Time("date", day),
		zap.Int("positions", len(r.portfolio.Symbols())),
		zap.Int("trades", len(batch)))

	return nil
}

// shouldSkip reports whether the new targets are close enough to the
// previous ones that trading would only churn: same symbol set and every
// weight within the configured drift.
func (e *BacktestEngineV1) shouldSkip(r *run, targets map[string]float64) bool {
	if !r.everTraded || len(targets) != len(r.prevTargets) {
		return false
	}

	for symbol, weight := range targets {
		prev, ok := r.prevTargets[symbol]
		if !ok || math.Abs(weight-prev) >= e.config.RebalanceDrift {
			return false
		}
	}

	return true
}

// liquidate closes every position at the final day's prices.
func (e *BacktestEngineV1) liquidate(ctx context.Context, r *run, day time.Time) error {
	held := r.portfolio.Symbols()
	sort.Strings(held)

	prices := e.resolvePrices(ctx, r, day, held)

	var batch []types.Transaction
	for _, symbol := range held {
		h, _ := r.portfolio.Holding(symbol)

		price, ok := prices[symbol]
		if !ok {
			// Last resort: exit at cost so the run can close.
			price = h.AvgPrice
			prices[symbol] = price
		}

		tx, err := r.portfolio.Sell(day, symbol, h.Quantity, price, types.ReasonFinalLiquidation, prices)
		if err != nil {
			return err
		}
		batch = append(batch, tx)
	}

	if err := r.ledger.RecordBatch(batch); err != nil {
		return err
	}

	r.snapshots = append(r.snapshots, r.portfolio.Snapshot(day, nil))
	e.log.Info("final liquidation complete", zap.Time("date", day), zap.Float64("final_value", r.portfolio.Cash()))

	return nil
}

// markToMarket values the portfolio at the given day's prices.
func (e *BacktestEngineV1) markToMarket(ctx context.Context, r *run, day time.Time) (float64, error) {
	prices := e.resolvePrices(ctx, r, day, r.portfolio.Symbols())

	return r.portfolio.Value(prices), nil
}

// resolvePrices looks up execution prices for the given symbols as of day.
// A price older than the quiet lookback window is used but recorded as a
// gap; past the maximum window the symbol is omitted from the result.
func (e *BacktestEngineV1) resolvePrices(ctx context.Context, r *run, day time.Time, symbols []string) map[string]float64 {
	prices := make(map[string]float64, len(symbols))

	for _, symbol := range symbols {
		lookup, err := r.data.GetPriceAsOf(ctx, symbol, day, e.config.PriceLookbackMaxDays)
		if err != nil {
			detail := "no price within the maximum lookback window"
			if gap, ok := errors.AsDataGapError(err); ok {
				detail = gap.Message
			}
			r.gaps = append(r.gaps, types.DataGapNote{
				Date:   day,
				Symbol: symbol,
				Kind:   "price",
				Detail: detail,
			})
			continue
		}

		if lookup.Lag > e.config.PriceLookbackDays {
			e.log.Warn("using stale price",
				zap.String("symbol", symbol),
				zap.Time("date", day),
				zap.Int("lag_days", lookup.Lag))
			r.gaps = append(r.gaps, types.DataGapNote{
				Date:   day,
				Symbol: symbol,
				Kind:   "price",
				Detail: "stale price, last trade " + lookup.Bar.Date.Format(time.DateOnly),
			})
		}

		prices[symbol] = lookup.Bar.ExecutionPrice()
	}

	return prices
}

// assemble builds the result, computes the report, and writes outputs when
// a results folder is configured.
func (e *BacktestEngineV1) assemble(ctx context.Context, r *run) (*types.BacktestResult, error) {
	transactions, err := r.ledger.GetAllTransactions()
	if err != nil {
		return nil, err
	}

	benchmark, err := e.benchmarkCurve(ctx, r)
	if err != nil {
		return nil, err
	}

	calculator := metrics.NewCalculator(e.config.RiskFreeRate)
	result := &types.BacktestResult{
		RunID:          uuid.New().String(),
		StartDate:      e.config.StartDate,
		EndDate:        e.config.EndDate,
		InitialCapital: e.config.InitialCapital,
		FinalValue:     r.equity[len(r.equity)-1].Value,
		EquityCurve:    r.equity,
		DrawdownSeries: metrics.DrawdownSeries(r.equity),
		ReturnsSeries:  returnsSeries(r.equity),
		RebalanceDates: r.scheduled,
		Transactions:   transactions,
		Snapshots:      r.snapshots,
		DataGaps:       r.gaps,
		Report:         calculator.Compute(r.equity, transactions, benchmark),
	}

	if e.resultsFolder != "" {
		if err := result.WriteResult(filepath.Join(e.resultsFolder, "result.yaml")); err != nil {
			return nil, err
		}
		if err := r.ledger.Write(filepath.Join(e.resultsFolder, "transactions.parquet")); err != nil {
			return nil, err
		}
		e.log.Info("results written", zap.String("folder", e.resultsFolder))
	}

	return result, nil
}

// benchmarkCurve builds a buy-and-hold curve for the configured benchmark
// symbol, scaled to the initial capital.
func (e *BacktestEngineV1) benchmarkCurve(ctx context.Context, r *run) ([]types.EquityPoint, error) {
	if e.config.Benchmark.IsNone() {
		return nil, nil
	}
	symbol := e.config.Benchmark.Unwrap()

	var curve []types.EquityPoint
	base := 0.0
	for _, point := range r.equity {
		lookup, err := r.data.GetPriceAsOf(ctx, symbol, point.Date, e.config.PriceLookbackMaxDays)
		if err != nil {
			continue
		}

		price := lookup.Bar.ExecutionPrice()
		if base == 0 {
			base = price
		}
		curve = append(curve, types.EquityPoint{Date: point.Date, Value: e.config.InitialCapital * price / base})
	}

	if len(curve) == 0 {
		e.log.Warn("benchmark symbol has no price data", zap.String("symbol", symbol))
	}

	return curve, nil
}

func notify(onRebalance optional.Option[engine.OnRebalanceCallback], current, total int, snapshot types.PortfolioSnapshot) error {
	if onRebalance.IsNone() {
		return nil
	}

	if err := onRebalance.Unwrap()(current, total, snapshot); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestCancelled, "rebalance callback aborted the run", err)
	}

	return nil
}

// returnsSeries keys each period return by the date of its closing mark.
func returnsSeries(equity []types.EquityPoint) []types.PeriodReturn {
	returns := metrics.Returns(equity)

	out := make([]types.PeriodReturn, 0, len(returns))
	for i, r := range returns {
		out = append(out, types.PeriodReturn{
			Period: equity[i+1].Date.Format(time.DateOnly),
			Return: r * 100,
		})
	}

	return out
}

func unionSymbols(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)

	return out
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}

func sortedKeys(m map[string]float64) []string {
	out := keys(m)
	sort.Strings(out)

	return out
}
