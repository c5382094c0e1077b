package metrics

import (
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// DrawdownSeries computes the drawdown from the running peak at every point
// of the equity curve. Drawdown values are zero or negative percentages.
// Duration counts consecutive observations spent below the peak, in days
// since the peak was set.
func DrawdownSeries(equity []types.EquityPoint) []types.DrawdownPoint {
	if len(equity) == 0 {
		return nil
	}

	out := make([]types.DrawdownPoint, 0, len(equity))
	peak := equity[0].Value
	peakDate := equity[0].Date

	for _, p := range equity {
		if p.Value >= peak {
			peak = p.Value
			peakDate = p.Date
		}

		drawdown := 0.0
		if peak > 0 {
			drawdown = (p.Value/peak - 1) * 100
		}

		duration := 0
		if drawdown < 0 {
			duration = int(p.Date.Sub(peakDate).Hours() / 24)
		}

		out = append(out, types.DrawdownPoint{
			Date:     p.Date,
			Value:    p.Value,
			Peak:     peak,
			Drawdown: drawdown,
			Duration: duration,
		})
	}

	return out
}

// MaxDrawdown returns the deepest drawdown in percent (zero or negative),
// the date it bottomed, and the longest time spent below a peak in days.
func MaxDrawdown(series []types.DrawdownPoint) (float64, time.Time, int) {
	var worst float64
	var worstDate time.Time
	var longest int

	for _, p := range series {
		if p.Drawdown < worst {
			worst = p.Drawdown
			worstDate = p.Date
		}
		if p.Duration > longest {
			longest = p.Duration
		}
	}

	return worst, worstDate, longest
}

// drawdownTolerance treats anything within one percent of the running peak
// as recovered when locating the deepest drawdown's boundaries.
const drawdownTolerance = -1.0

// DrawdownWindow locates the start and recovery dates around the deepest
// drawdown. Start is the last date before the trough still within tolerance
// of the peak; recovery is the first such date after the trough, nil when
// the curve never climbs back.
func DrawdownWindow(series []types.DrawdownPoint) (start time.Time, recovery *time.Time) {
	troughIdx := -1
	worst := 0.0
	for i, p := range series {
		if p.Drawdown < worst {
			worst = p.Drawdown
			troughIdx = i
		}
	}
	if troughIdx < 0 {
		return start, nil
	}

	startIdx := troughIdx
	for i := troughIdx; i >= 0; i-- {
		if series[i].Drawdown >= drawdownTolerance {
			startIdx = i
			break
		}
	}
	start = series[startIdx].Date

	for i := troughIdx; i < len(series); i++ {
		if series[i].Drawdown >= drawdownTolerance {
			d := series[i].Date
			recovery = &d
			break
		}
	}

	return start, recovery
}
