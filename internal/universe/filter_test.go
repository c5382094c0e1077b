package universe

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

type FilterTestSuite struct {
	suite.Suite
	log  *logger.Logger
	asOf time.Time
}

func TestFilterSuite(t *testing.T) {
	suite.Run(t, new(FilterTestSuite))
}

func (suite *FilterTestSuite) SetupSuite() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.log = log
	suite.asOf = time.Date(2020, time.June, 30, 0, 0, 0, 0, time.UTC)
}

// fixture builds a datasource with one bar per symbol and the given
// fundamentals.
func (suite *FilterTestSuite) fixture(snaps ...types.FundamentalSnapshot) *datasource.InMemoryIndexedDataSource {
	ds := datasource.NewInMemoryIndexedDataSource(suite.log)
	for _, snap := range snaps {
		ds.AddPrice(types.PriceBar{Symbol: snap.Symbol, Date: suite.asOf, Close: 100})
		ds.AddFundamental(snap)
	}
	ds.BuildIndex()

	return ds
}

func snapshot(symbol string, reportDate time.Time) types.FundamentalSnapshot {
	return types.FundamentalSnapshot{
		Symbol:     symbol,
		ReportDate: reportDate,
		PeriodType: types.PeriodTypeQuarterly,
		MarketCap:  optional.Some(2e9),
		ROE:        optional.Some(15.0),
	}
}

func (suite *FilterTestSuite) TestThresholdsApplied() {
	reported := suite.asOf.AddDate(0, -1, 0)

	pass := snapshot("PASS", reported)
	lowCap := snapshot("LOWCAP", reported)
	lowCap.MarketCap = optional.Some(5e8)
	lowROE := snapshot("LOWROE", reported)
	lowROE.ROE = optional.Some(5.0)

	ds := suite.fixture(pass, lowCap, lowROE)
	filter := NewFilter(FilterConfig{
		MinMarketCap: optional.Some(1e9),
		MinROE:       optional.Some(10.0),
	}, suite.log)

	candidates, gaps, err := filter.Eligible(context.Background(), ds, suite.asOf)
	suite.Require().NoError(err)
	suite.Require().Len(candidates, 1)
	suite.Equal("PASS", candidates[0].Symbol)
	suite.Empty(gaps)
}

func (suite *FilterTestSuite) TestCeilingAndPATThresholds() {
	reported := suite.asOf.AddDate(0, -1, 0)

	pass := snapshot("PASS", reported)
	pass.PAT = optional.Some(5e7)

	giant := snapshot("GIANT", reported)
	giant.MarketCap = optional.Some(9e10)
	giant.PAT = optional.Some(5e7)

	lossMaker := snapshot("LOSS", reported)
	lossMaker.PAT = optional.Some(-1e6)

	// Bounds are inclusive.
	edge := snapshot("EDGE", reported)
	edge.MarketCap = optional.Some(1e10)
	edge.PAT = optional.Some(0.0)

	ds := suite.fixture(pass, giant, lossMaker, edge)
	filter := NewFilter(FilterConfig{
		MaxMarketCap: optional.Some(1e10),
		MinPAT:       optional.Some(0.0),
	}, suite.log)

	candidates, _, err := filter.Eligible(context.Background(), ds, suite.asOf)
	suite.Require().NoError(err)
	suite.Require().Len(candidates, 2)
	suite.Equal("EDGE", candidates[0].Symbol)
	suite.Equal("PASS", candidates[1].Symbol)
}

func (suite *FilterTestSuite) TestMissingMetricFailsClosed() {
	reported := suite.asOf.AddDate(0, -1, 0)

	noROE := snapshot("NOROE", reported)
	noROE.ROE = optional.None[float64]()

	ds := suite.fixture(snapshot("OK", reported), noROE)
	filter := NewFilter(FilterConfig{MinROE: optional.Some(10.0)}, suite.log)

	candidates, gaps, err := filter.Eligible(context.Background(), ds, suite.asOf)
	suite.Require().NoError(err)
	suite.Require().Len(candidates, 1)
	suite.Equal("OK", candidates[0].Symbol)
	suite.Require().Len(gaps, 1)
	suite.Equal("NOROE", gaps[0].Symbol)
	suite.Equal("fundamentals", gaps[0].Kind)
}

func (suite *FilterTestSuite) TestNoFundamentalsExcluded() {
	ds := datasource.NewInMemoryIndexedDataSource(suite.log)
	ds.AddPrice(types.PriceBar{Symbol: "BARE", Date: suite.asOf, Close: 50})
	ds.BuildIndex()

	filter := NewFilter(FilterConfig{}, suite.log)
	candidates, gaps, err := filter.Eligible(context.Background(), ds, suite.asOf)
	suite.Require().NoError(err)
	suite.Empty(candidates)
	suite.Require().Len(gaps, 1)
	suite.Equal("BARE", gaps[0].Symbol)
}

func (suite *FilterTestSuite) TestNoLookahead() {
	// The only disclosure is reported after the screen date and must be
	// invisible.
	future := snapshot("FUT", suite.asOf.AddDate(0, 1, 0))

	ds := suite.fixture(future)
	filter := NewFilter(FilterConfig{}, suite.log)

	candidates, gaps, err := filter.Eligible(context.Background(), ds, suite.asOf)
	suite.Require().NoError(err)
	suite.Empty(candidates)
	suite.Len(gaps, 1)
}

func (suite *FilterTestSuite) TestResultsSortedBySymbol() {
	reported := suite.asOf.AddDate(0, -1, 0)
	ds := suite.fixture(snapshot("ZED", reported), snapshot("ALPHA", reported), snapshot("MID", reported))

	filter := NewFilter(FilterConfig{}, suite.log)
	candidates, _, err := filter.Eligible(context.Background(), ds, suite.asOf)
	suite.Require().NoError(err)
	suite.Require().Len(candidates, 3)
	suite.Equal("ALPHA", candidates[0].Symbol)
	suite.Equal("MID", candidates[1].Symbol)
	suite.Equal("ZED", candidates[2].Symbol)
}
