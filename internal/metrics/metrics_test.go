package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func day(offset int) time.Time {
	return time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func curve(values ...float64) []types.EquityPoint {
	out := make([]types.EquityPoint, 0, len(values))
	for i, v := range values {
		out = append(out, types.EquityPoint{Date: day(i), Value: v})
	}

	return out
}

func (suite *MetricsTestSuite) TestTotalReturn() {
	suite.InDelta(10.0, TotalReturn(curve(100000, 105000, 110000)), 1e-9)
	suite.InDelta(-20.0, TotalReturn(curve(100, 90, 80)), 1e-9)
	suite.Zero(TotalReturn(curve(100)))
}

func (suite *MetricsTestSuite) TestAnnualizedReturn() {
	// 21% over two years compounds to 10% a year.
	suite.InDelta(10.0, AnnualizedReturn(21.0, 2), 1e-9)
	suite.Zero(AnnualizedReturn(50.0, 0))
	suite.InDelta(-100.0, AnnualizedReturn(-100.0, 1), 1e-9)
}

func (suite *MetricsTestSuite) TestReturns() {
	returns := Returns(curve(100, 110, 99))
	suite.Require().Len(returns, 2)
	suite.InDelta(0.10, returns[0], 1e-9)
	suite.InDelta(-0.10, returns[1], 1e-9)
}

func (suite *MetricsTestSuite) TestDrawdownSeries() {
	series := DrawdownSeries(curve(100, 120, 90, 110))
	suite.Require().Len(series, 4)

	suite.Zero(series[0].Drawdown)
	suite.Zero(series[1].Drawdown)
	suite.InDelta(-25.0, series[2].Drawdown, 1e-9)
	suite.Equal(120.0, series[2].Peak)
	suite.InDelta(-100.0/12.0, series[3].Drawdown, 1e-9)

	maxDD, maxDate, duration := MaxDrawdown(series)
	suite.InDelta(-25.0, maxDD, 1e-9)
	suite.Equal(day(2), maxDate)
	suite.Equal(2, duration)

	// The slide starts at the 120 peak and never climbs back near it.
	start, recovery := DrawdownWindow(series)
	suite.Equal(day(1), start)
	suite.Nil(recovery)
}

func (suite *MetricsTestSuite) TestDrawdownRecoveryDate() {
	series := DrawdownSeries(curve(100, 80, 101))
	start, recovery := DrawdownWindow(series)
	suite.Equal(day(0), start)
	suite.Require().NotNil(recovery)
	suite.Equal(day(2), *recovery)
}

func (suite *MetricsTestSuite) TestVaR95() {
	returns := []float64{-0.03, 0.01, 0.02, -0.01, 0.05}

	// 5th percentile with linear interpolation between the two worst returns.
	suite.InDelta(-2.6, VaR95(returns), 1e-9)
	suite.Zero(VaR95(nil))
}

func (suite *MetricsTestSuite) TestSkewness() {
	suite.Zero(Skewness([]float64{0.01, 0.02, 0.03}))
	suite.Greater(Skewness([]float64{0.01, 0.01, 0.01, 0.07}), 0.0)
	suite.Less(Skewness([]float64{-0.07, -0.01, -0.01, -0.01}), 0.0)
}

func (suite *MetricsTestSuite) TestKurtosis() {
	// Adjusted excess kurtosis of four evenly spaced points.
	suite.InDelta(-1.2, Kurtosis([]float64{0.01, 0.02, 0.03, 0.04}), 1e-9)
	suite.Zero(Kurtosis([]float64{0.01, 0.02, 0.03}))
}

func (suite *MetricsTestSuite) TestFlatCurveHasZeroRatios() {
	c := NewCalculator(0)
	report := c.Compute(curve(100, 100, 100, 100), nil, nil)

	suite.Zero(report.Volatility)
	suite.Zero(report.SharpeRatio)
	suite.Zero(report.SortinoRatio)
	suite.Zero(report.MaxDrawdown)
}

func (suite *MetricsTestSuite) TestPeriodWinRate() {
	c := NewCalculator(0)
	report := c.Compute(curve(100, 110, 105, 120), nil, nil)

	suite.Equal(2, report.ProfitablePeriods)
	suite.Equal(1, report.UnprofitablePeriods)
	suite.InDelta(200.0/3.0, report.WinRate, 1e-9)

	flat := c.Compute(curve(100, 100, 100), nil, nil)
	suite.Zero(flat.WinRate)
	suite.Equal(2, flat.UnprofitablePeriods)
}

func (suite *MetricsTestSuite) TestSharpePositiveForSteadyGains() {
	c := NewCalculator(0)
	report := c.Compute(curve(100, 101, 102.5, 103, 104.8), nil, nil)

	suite.Greater(report.SharpeRatio, 0.0)
	// No losing period means no downside deviation, which degrades the
	// Sortino ratio to zero rather than infinity.
	suite.Zero(report.SortinoRatio)
	suite.Greater(report.Volatility, 0.0)
}

func (suite *MetricsTestSuite) TestSortinoPositiveWithDownside() {
	c := NewCalculator(0)
	report := c.Compute(curve(100, 103, 102, 106, 105, 110), nil, nil)

	suite.Greater(report.SortinoRatio, 0.0)
	suite.Greater(report.SortinoRatio, report.SharpeRatio)
}

func (suite *MetricsTestSuite) TestPeriodsPerYearDaily() {
	suite.InDelta(252.0, PeriodsPerYear(curve(100, 101, 102)), 1e-9)
}

func (suite *MetricsTestSuite) TestPeriodsPerYearQuarterly() {
	equity := []types.EquityPoint{
		{Date: day(0), Value: 100},
		{Date: day(0).AddDate(0, 3, 0), Value: 101},
		{Date: day(0).AddDate(0, 6, 0), Value: 102},
	}

	ppy := PeriodsPerYear(equity)
	suite.InDelta(4.0, ppy, 0.1)
}

func (suite *MetricsTestSuite) TestCalmarRatio() {
	suite.InDelta(2.0, CalmarRatio(50.0, -25.0), 1e-9)
	suite.Zero(CalmarRatio(10.0, 0))
}

func (suite *MetricsTestSuite) TestYearlyReturns() {
	equity := []types.EquityPoint{
		{Date: time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC), Value: 100},
		{Date: time.Date(2019, time.December, 31, 0, 0, 0, 0, time.UTC), Value: 110},
		{Date: time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC), Value: 121},
	}

	yearly := YearlyReturns(equity)
	suite.Require().Len(yearly, 2)
	suite.Equal("2019", yearly[0].Period)
	suite.InDelta(10.0, yearly[0].Return, 1e-9)
	suite.Equal("2020", yearly[1].Period)
	suite.InDelta(10.0, yearly[1].Return, 1e-9)
}

func (suite *MetricsTestSuite) TestBenchmarkComparison() {
	c := NewCalculator(0)
	benchmark := curve(100, 102, 105)
	report := c.Compute(curve(100000, 104000, 110000), nil, benchmark)

	suite.Require().NotNil(report.BenchmarkReturn)
	suite.InDelta(5.0, *report.BenchmarkReturn, 1e-9)
	suite.Require().NotNil(report.ExcessReturn)
	suite.InDelta(5.0, *report.ExcessReturn, 1e-9)
}
