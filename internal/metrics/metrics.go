package metrics

import (
	"math"
	"sort"
	"strconv"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

const (
	// tradingDaysPerYear annualizes daily return series.
	tradingDaysPerYear  = 252.0
	calendarDaysPerYear = 365.25
)

// Calculator derives the performance report from an equity curve and the
// transaction history. All percentage outputs are plain numbers in percent
// terms: 12.34 means 12.34%.
type Calculator struct {
	// riskFreeRate is the annual risk-free rate in percent.
	riskFreeRate float64
	topCount     int
}

func NewCalculator(riskFreeRate float64) *Calculator {
	return &Calculator{riskFreeRate: riskFreeRate, topCount: 5}
}

// Compute assembles the full report. benchmark may be nil; when present it
// must cover the same date range as the equity curve.
func (c *Calculator) Compute(equity []types.EquityPoint, transactions []types.Transaction, benchmark []types.EquityPoint) types.PerformanceReport {
	report := types.PerformanceReport{RiskFreeRate: c.riskFreeRate}
	if len(equity) < 2 {
		return report
	}

	returns := Returns(equity)
	periodsPerYear := PeriodsPerYear(equity)
	years := equity[len(equity)-1].Date.Sub(equity[0].Date).Hours() / 24 / calendarDaysPerYear

	report.PeriodsPerYear = periodsPerYear
	report.TotalReturn = TotalReturn(equity)
	report.AnnualizedReturn = AnnualizedReturn(report.TotalReturn, years)
	report.Volatility = Volatility(returns, periodsPerYear)
	report.SharpeRatio = c.sharpe(returns, periodsPerYear)
	report.SortinoRatio = c.sortino(returns, periodsPerYear)

	report.ValueAtRisk95 = VaR95(returns)
	report.Skewness = Skewness(returns)
	report.Kurtosis = Kurtosis(returns)

	drawdowns := DrawdownSeries(equity)
	maxDD, maxDDDate, maxDuration := MaxDrawdown(drawdowns)
	report.MaxDrawdown = maxDD
	report.MaxDrawdownDuration = maxDuration
	if !maxDDDate.IsZero() {
		d := maxDDDate
		report.MaxDrawdownDate = &d

		ddStart, recovery := DrawdownWindow(drawdowns)
		report.MaxDrawdownStart = &ddStart
		report.RecoveryDate = recovery
	}
	report.CalmarRatio = CalmarRatio(report.AnnualizedReturn, maxDD)

	for _, r := range returns {
		if r > 0 {
			report.ProfitablePeriods++
		} else {
			report.UnprofitablePeriods++
		}
	}
	report.WinRate = float64(report.ProfitablePeriods) / float64(len(returns)) * 100

	trips := RoundTrips(transactions)
	report.TotalTrades = len(transactions)
	report.RoundTrips = len(trips)
	report.TradeWinRate = WinRate(trips)
	report.ProfitFactor = ProfitFactor(trips)

	performances := SymbolPerformances(trips)
	report.TopWinners = topByReturn(performances, c.topCount, false)
	report.TopLosers = topByReturn(performances, c.topCount, true)

	report.YearlyReturns = YearlyReturns(equity)

	if len(benchmark) >= 2 {
		benchReturn := TotalReturn(benchmark)
		excess := report.TotalReturn - benchReturn
		report.BenchmarkReturn = &benchReturn
		report.ExcessReturn = &excess
	}

	return report
}

// Returns converts the equity curve into simple period returns as fractions.
func Returns(equity []types.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}

	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i].Value/prev-1)
	}

	return out
}

// PeriodsPerYear infers the annualization factor from the median spacing of
// the curve: daily (or near-daily) curves use the trading-day convention,
// sparser curves use calendar spacing.
func PeriodsPerYear(equity []types.EquityPoint) float64 {
	if len(equity) < 2 {
		return tradingDaysPerYear
	}

	gaps := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		gaps = append(gaps, equity[i].Date.Sub(equity[i-1].Date).Hours()/24)
	}
	sort.Float64s(gaps)
	median := gaps[len(gaps)/2]

	if median <= 3 {
		return tradingDaysPerYear
	}

	return calendarDaysPerYear / median
}

// TotalReturn is the whole-run return in percent.
func TotalReturn(equity []types.EquityPoint) float64 {
	if len(equity) < 2 || equity[0].Value == 0 {
		return 0
	}

	return (equity[len(equity)-1].Value/equity[0].Value - 1) * 100
}

// AnnualizedReturn converts a total return in percent over the given number
// of years into a compound annual growth rate in percent.
func AnnualizedReturn(totalReturnPct, years float64) float64 {
	if years <= 0 {
		return 0
	}

	growth := 1 + totalReturnPct/100
	if growth <= 0 {
		return -100
	}

	return (math.Pow(growth, 1/years) - 1) * 100
}

// Volatility is the annualized standard deviation of returns in percent.
func Volatility(returns []float64, periodsPerYear float64) float64 {
	return stddev(returns) * math.Sqrt(periodsPerYear) * 100
}

func (c *Calculator) sharpe(returns []float64, periodsPerYear float64) float64 {
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}

	excess := mean(returns) - c.riskFreeRate/100/periodsPerYear
	return excess / sd * math.Sqrt(periodsPerYear)
}

// sortino penalizes only downside deviation. Zero downside deviation with a
// positive excess return would be infinite, so it degrades to zero the same
// way a flat curve does.
func (c *Calculator) sortino(returns []float64, periodsPerYear float64) float64 {
	perPeriodRf := c.riskFreeRate / 100 / periodsPerYear

	sumSq := 0.0
	for _, r := range returns {
		if d := r - perPeriodRf; d < 0 {
			sumSq += d * d
		}
	}
	if len(returns) == 0 {
		return 0
	}

	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}

	excess := mean(returns) - perPeriodRf
	return excess / downside * math.Sqrt(periodsPerYear)
}

// VaR95 is the 5th percentile of period returns in percent: the loss the
// portfolio exceeded in only five percent of periods. Percentile rank uses
// linear interpolation between order statistics.
func VaR95(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	rank := 0.05 * float64(len(sorted)-1)
	lo := int(rank)
	v := sorted[lo]
	if lo+1 < len(sorted) {
		v += (rank - float64(lo)) * (sorted[lo+1] - sorted[lo])
	}

	return v * 100
}

// Skewness is the bias-adjusted sample skewness of the return distribution.
func Skewness(returns []float64) float64 {
	n := float64(len(returns))
	if n < 3 {
		return 0
	}

	m := mean(returns)
	m2, m3 := 0.0, 0.0
	for _, v := range returns {
		d := v - m
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}

	return math.Sqrt(n*(n-1)) / (n - 2) * m3 / math.Pow(m2, 1.5)
}

// Kurtosis is the bias-adjusted excess kurtosis of the return distribution:
// zero for a normal distribution, positive for fat tails.
func Kurtosis(returns []float64) float64 {
	n := float64(len(returns))
	if n < 4 {
		return 0
	}

	m := mean(returns)
	sumSq, sumQuad := 0.0, 0.0
	for _, v := range returns {
		d := v - m
		sumSq += d * d
		sumQuad += d * d * d * d
	}
	variance := sumSq / (n - 1)
	if variance == 0 {
		return 0
	}

	return n*(n+1)/((n-1)*(n-2)*(n-3))*sumQuad/(variance*variance) -
		3*(n-1)*(n-1)/((n-2)*(n-3))
}

// CalmarRatio relates annual growth to the worst drawdown. Both arguments
// are percentages; maxDrawdown is zero or negative.
func CalmarRatio(annualizedReturnPct, maxDrawdownPct float64) float64 {
	if maxDrawdownPct == 0 {
		return 0
	}

	return annualizedReturnPct / math.Abs(maxDrawdownPct)
}

// YearlyReturns splits the curve by calendar year. Each year's return uses
// the last observation of the prior year as its base, so partial first years
// measure from the run start.
func YearlyReturns(equity []types.EquityPoint) []types.PeriodReturn {
	if len(equity) < 2 {
		return nil
	}

	lastOfYear := make(map[int]types.EquityPoint)
	var years []int
	for _, p := range equity {
		year := p.Date.Year()
		if _, seen := lastOfYear[year]; !seen {
			years = append(years, year)
		}
		lastOfYear[year] = p
	}
	sort.Ints(years)

	out := make([]types.PeriodReturn, 0, len(years))
	base := equity[0]
	for _, year := range years {
		end := lastOfYear[year]
		ret := 0.0
		if base.Value != 0 {
			ret = (end.Value/base.Value - 1) * 100
		}
		out = append(out, types.PeriodReturn{Period: strconv.Itoa(year), Return: ret})
		base = end
	}

	return out
}

func topByReturn(performances []types.SymbolPerformance, n int, ascending bool) []types.SymbolPerformance {
	sorted := make([]types.SymbolPerformance, len(performances))
	copy(sorted, performances)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TotalReturn == sorted[j].TotalReturn {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		if ascending {
			return sorted[i].TotalReturn < sorted[j].TotalReturn
		}
		return sorted[i].TotalReturn > sorted[j].TotalReturn
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}

	return sorted
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// stddev is the sample standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(values)-1))
}
