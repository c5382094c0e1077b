package universe

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// evaluationConcurrency bounds the number of symbols screened in parallel.
const evaluationConcurrency = 8

// Candidate is a symbol that passed the eligibility screen, together with
// the fundamental snapshot it was screened on.
type Candidate struct {
	Symbol       string
	Fundamentals types.FundamentalSnapshot
}

// Filter screens symbols against FilterConfig thresholds as of a given date.
type Filter struct {
	config FilterConfig
	logger *logger.Logger
}

func NewFilter(config FilterConfig, log *logger.Logger) *Filter {
	return &Filter{config: config, logger: log}
}

// Eligible returns the symbols passing every configured threshold as of the
// given date, sorted by symbol. Symbols without any fundamental disclosure,
// or missing a metric a threshold needs, are excluded and recorded as data
// gaps. Only data reported at or before asOf is consulted.
func (f *Filter) Eligible(ctx context.Context, ds datasource.MarketDataSource, asOf time.Time) ([]Candidate, []types.DataGapNote, error) {
	symbols, err := ds.ListSymbols(ctx)
	if err != nil {
		return nil, nil, err
	}

	thresholds := f.config.thresholds()

	var mu sync.Mutex
	var candidates []Candidate
	var gaps []types.DataGapNote

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evaluationConcurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			snap, err := ds.GetFundamentalsAsOf(gctx, symbol, asOf)
			if err != nil {
				return err
			}

			if snap.IsNone() {
				mu.Lock()
				gaps = append(gaps, types.DataGapNote{
					Date:   asOf,
					Symbol: symbol,
					Kind:   "fundamentals",
					Detail: "no fundamental data reported at or before this date",
				})
				mu.Unlock()
				return nil
			}

			fundamentals := snap.Unwrap()
			passed, gap := f.passes(fundamentals, thresholds)
			mu.Lock()
			if gap != nil {
				gap.Date = asOf
				gaps = append(gaps, *gap)
			} else if passed {
				candidates = append(candidates, Candidate{Symbol: symbol, Fundamentals: fundamentals})
			}
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Symbol < candidates[j].Symbol })
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Symbol < gaps[j].Symbol })

	f.logger.Debug("universe screened",
		zap.Time("as_of", asOf),
		zap.Int("symbols", len(symbols)),
		zap.Int("eligible", len(candidates)))

	return candidates, gaps, nil
}

// passes applies every threshold. A missing metric fails the screen and is
// reported as a gap rather than silently treated as zero.
func (f *Filter) passes(snap types.FundamentalSnapshot, thresholds []threshold) (bool, *types.DataGapNote) {
	for _, th := range thresholds {
		value := snap.Metric(th.metric)
		if value.IsNone() {
			return false, &types.DataGapNote{
				Symbol: snap.Symbol,
				Kind:   "fundamentals",
				Detail: "missing metric required by filter: " + th.metric,
			}
		}

		v := value.Unwrap()
		if th.isFloor && v < th.limit {
			return false, nil
		}
		if !th.isFloor && v > th.limit {
			return false, nil
		}
	}

	return true, nil
}
