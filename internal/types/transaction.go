package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// TransactionAction is the side of an executed trade.
type TransactionAction string

const (
	TransactionActionBuy  TransactionAction = "BUY"
	TransactionActionSell TransactionAction = "SELL"
)

// Transaction reasons recorded by the simulator.
const (
	ReasonInitialConstruction string = "initial_construction"
	ReasonRebalance           string = "rebalance"
	ReasonUniverseExit        string = "universe_exit"
	ReasonFinalLiquidation    string = "final_liquidation"
)

// Transaction is one executed trade, annotated with the portfolio state
// immediately after execution.
type Transaction struct {
	ID             string            `yaml:"id" json:"id" validate:"required"`
	Date           time.Time         `yaml:"date" json:"date" validate:"required"`
	Symbol         string            `yaml:"symbol" json:"symbol" validate:"required"`
	Action         TransactionAction `yaml:"action" json:"action" validate:"required,oneof=BUY SELL"`
	Quantity       int64             `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Price          float64           `yaml:"price" json:"price" validate:"required,gt=0"`
	TotalValue     float64           `yaml:"total_value" json:"total_value" validate:"required,gt=0"`
	CashBalance    float64           `yaml:"cash_balance" json:"cash_balance" validate:"gte=0"`
	PortfolioValue float64           `yaml:"portfolio_value" json:"portfolio_value" validate:"gt=0"`
	Reason         string            `yaml:"reason" json:"reason" validate:"required"`
}

var transactionValidator = validator.New()

// Validate checks structural integrity of the transaction.
func (t Transaction) Validate() error {
	if err := transactionValidator.Struct(t); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidTransaction, "transaction failed validation", err)
	}

	return nil
}

// Holding is an open position.
type Holding struct {
	Symbol   string  `yaml:"symbol" json:"symbol"`
	Quantity int64   `yaml:"quantity" json:"quantity"`
	AvgPrice float64 `yaml:"avg_price" json:"avg_price"`
}

// HoldingDetail is a holding marked to a specific date.
type HoldingDetail struct {
	Symbol       string  `yaml:"symbol" json:"symbol"`
	Quantity     int64   `yaml:"quantity" json:"quantity"`
	AvgPrice     float64 `yaml:"avg_price" json:"avg_price"`
	CurrentPrice float64 `yaml:"current_price" json:"current_price"`
	Value        float64 `yaml:"value" json:"value"`
}

// PortfolioSnapshot captures the full portfolio composition at one date.
type PortfolioSnapshot struct {
	Date        time.Time                `yaml:"date" json:"date"`
	Holdings    map[string]HoldingDetail `yaml:"holdings" json:"holdings"`
	CashBalance float64                  `yaml:"cash_balance" json:"cash_balance"`
	TotalValue  float64                  `yaml:"total_value" json:"total_value"`
}
