package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

type LedgerTestSuite struct {
	suite.Suite
	ledger *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	ledger, err := NewLedger(log)
	suite.Require().NoError(err)
	suite.ledger = ledger
}

func (suite *LedgerTestSuite) TearDownTest() {
	suite.Require().NoError(suite.ledger.Close())
}

func (suite *LedgerTestSuite) transaction(symbol string, action types.TransactionAction) types.Transaction {
	return types.Transaction{
		ID:             uuid.New().String(),
		Date:           time.Date(2020, time.March, 2, 0, 0, 0, 0, time.UTC),
		Symbol:         symbol,
		Action:         action,
		Quantity:       10,
		Price:          100,
		TotalValue:     1000,
		CashBalance:    99000,
		PortfolioValue: 100000,
		Reason:         types.ReasonRebalance,
	}
}

func (suite *LedgerTestSuite) TestRecordAndReadBack() {
	batch := []types.Transaction{
		suite.transaction("TCS", types.TransactionActionBuy),
		suite.transaction("INFY", types.TransactionActionBuy),
	}
	suite.Require().NoError(suite.ledger.RecordBatch(batch))

	count, err := suite.ledger.Count()
	suite.Require().NoError(err)
	suite.Equal(2, count)

	all, err := suite.ledger.GetAllTransactions()
	suite.Require().NoError(err)
	suite.Require().Len(all, 2)
	// Ordered by date then symbol.
	suite.Equal("INFY", all[0].Symbol)
	suite.Equal("TCS", all[1].Symbol)
	suite.Equal(types.TransactionActionBuy, all[0].Action)
	suite.Equal(int64(10), all[0].Quantity)
}

func (suite *LedgerTestSuite) TestEmptyBatchIsNoop() {
	suite.Require().NoError(suite.ledger.RecordBatch(nil))

	count, err := suite.ledger.Count()
	suite.Require().NoError(err)
	suite.Zero(count)
}

func (suite *LedgerTestSuite) TestCleanup() {
	suite.Require().NoError(suite.ledger.RecordBatch([]types.Transaction{suite.transaction("TCS", types.TransactionActionBuy)}))
	suite.Require().NoError(suite.ledger.Cleanup())

	count, err := suite.ledger.Count()
	suite.Require().NoError(err)
	suite.Zero(count)
}

func (suite *LedgerTestSuite) TestParquetExport() {
	suite.Require().NoError(suite.ledger.RecordBatch([]types.Transaction{suite.transaction("TCS", types.TransactionActionSell)}))

	path := filepath.Join(suite.T().TempDir(), "transactions.parquet")
	suite.Require().NoError(suite.ledger.Write(path))
	suite.FileExists(path)
}
