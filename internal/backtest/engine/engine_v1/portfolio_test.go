package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type PortfolioTestSuite struct {
	suite.Suite
	portfolio *Portfolio
	day       time.Time
}

func TestPortfolioSuite(t *testing.T) {
	suite.Run(t, new(PortfolioTestSuite))
}

func (suite *PortfolioTestSuite) SetupTest() {
	suite.portfolio = NewPortfolio()
	suite.day = time.Date(2020, time.March, 2, 0, 0, 0, 0, time.UTC)
	suite.Require().NoError(suite.portfolio.Init(100000))
}

func (suite *PortfolioTestSuite) TestInitTransitions() {
	p := NewPortfolio()
	suite.Equal(PortfolioStateUninitialized, p.State())
	suite.Require().NoError(p.Init(1000))
	suite.Equal(PortfolioStateActive, p.State())

	err := p.Init(1000)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPortfolioState))
}

func (suite *PortfolioTestSuite) TestBuyReducesCashAndOpensPosition() {
	prices := map[string]float64{"TCS": 2000}
	tx, err := suite.portfolio.Buy(suite.day, "TCS", 10, 2000, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)

	suite.Equal(types.TransactionActionBuy, tx.Action)
	suite.InDelta(20000.0, tx.TotalValue, 1e-9)
	suite.InDelta(80000.0, suite.portfolio.Cash(), 1e-9)

	h, ok := suite.portfolio.Holding("TCS")
	suite.Require().True(ok)
	suite.Equal(int64(10), h.Quantity)
	suite.InDelta(2000.0, h.AvgPrice, 1e-9)
}

func (suite *PortfolioTestSuite) TestBuyAveragesCost() {
	prices := map[string]float64{"TCS": 3000}
	_, err := suite.portfolio.Buy(suite.day, "TCS", 10, 2000, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)
	_, err = suite.portfolio.Buy(suite.day, "TCS", 10, 3000, types.ReasonRebalance, prices)
	suite.Require().NoError(err)

	h, _ := suite.portfolio.Holding("TCS")
	suite.Equal(int64(20), h.Quantity)
	suite.InDelta(2500.0, h.AvgPrice, 1e-9)
}

func (suite *PortfolioTestSuite) TestInsufficientCashRejected() {
	prices := map[string]float64{"TCS": 50000}
	_, err := suite.portfolio.Buy(suite.day, "TCS", 3, 50000, types.ReasonInitialConstruction, prices)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientCash))
	suite.InDelta(100000.0, suite.portfolio.Cash(), 1e-9)
}

func (suite *PortfolioTestSuite) TestSellClosesPosition() {
	prices := map[string]float64{"TCS": 2200}
	_, err := suite.portfolio.Buy(suite.day, "TCS", 10, 2000, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)

	tx, err := suite.portfolio.Sell(suite.day.AddDate(0, 3, 0), "TCS", 10, 2200, types.ReasonRebalance, prices)
	suite.Require().NoError(err)
	suite.InDelta(22000.0, tx.TotalValue, 1e-9)
	suite.InDelta(102000.0, suite.portfolio.Cash(), 1e-9)

	_, ok := suite.portfolio.Holding("TCS")
	suite.False(ok)
}

func (suite *PortfolioTestSuite) TestOversellRejected() {
	prices := map[string]float64{"TCS": 2000}
	_, err := suite.portfolio.Buy(suite.day, "TCS", 10, 2000, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)

	_, err = suite.portfolio.Sell(suite.day, "TCS", 11, 2000, types.ReasonRebalance, prices)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTransaction))
}

func (suite *PortfolioTestSuite) TestSellUnknownSymbolRejected() {
	_, err := suite.portfolio.Sell(suite.day, "NOPE", 1, 100, types.ReasonRebalance, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePositionNotFound))
}

func (suite *PortfolioTestSuite) TestCashRoundsToTwoPlaces() {
	prices := map[string]float64{"ODD": 33.333}
	_, err := suite.portfolio.Buy(suite.day, "ODD", 3, 33.333, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)

	// 3 * 33.333 = 99.999 rounds to 100.00.
	suite.InDelta(99900.00, suite.portfolio.Cash(), 1e-9)
}

func (suite *PortfolioTestSuite) TestValueMarksToPrices() {
	prices := map[string]float64{"TCS": 2000}
	_, err := suite.portfolio.Buy(suite.day, "TCS", 10, 2000, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)

	suite.InDelta(100000.0, suite.portfolio.Value(prices), 1e-9)
	suite.InDelta(101000.0, suite.portfolio.Value(map[string]float64{"TCS": 2100}), 1e-9)
}

func (suite *PortfolioTestSuite) TestSnapshot() {
	prices := map[string]float64{"TCS": 2100}
	_, err := suite.portfolio.Buy(suite.day, "TCS", 10, 2000, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)

	// 10 shares cost 20000, leaving 80000 cash; marked at 2100 the
	// position is worth 21000 for a total of 101000.
	snapshot := suite.portfolio.Snapshot(suite.day, prices)
	suite.Equal(suite.day, snapshot.Date)
	suite.InDelta(80000.0, snapshot.CashBalance, 1e-9)
	suite.Require().Contains(snapshot.Holdings, "TCS")
	suite.InDelta(21000.0, snapshot.Holdings["TCS"].Value, 1e-9)
	suite.InDelta(101000.0, snapshot.TotalValue, 1e-9)
}

func (suite *PortfolioTestSuite) TestFinalizeRequiresFlatBook() {
	prices := map[string]float64{"TCS": 2000}
	_, err := suite.portfolio.Buy(suite.day, "TCS", 10, 2000, types.ReasonInitialConstruction, prices)
	suite.Require().NoError(err)

	err = suite.portfolio.Finalize()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvariantViolation))

	_, err = suite.portfolio.Sell(suite.day, "TCS", 10, 2000, types.ReasonFinalLiquidation, prices)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.portfolio.Finalize())
	suite.Equal(PortfolioStateFinalized, suite.portfolio.State())

	_, err = suite.portfolio.Buy(suite.day, "TCS", 1, 2000, types.ReasonRebalance, prices)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPortfolioState))
}
