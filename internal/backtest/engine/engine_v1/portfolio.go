package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// PortfolioState is the lifecycle phase of a Portfolio.
type PortfolioState string

const (
	PortfolioStateUninitialized PortfolioState = "UNINITIALIZED"
	PortfolioStateActive        PortfolioState = "ACTIVE"
	PortfolioStateFinalized     PortfolioState = "FINALIZED"
)

// Portfolio tracks cash and integer share positions through a run. Cash is
// kept as a decimal rounded to two places half-up after every trade, so a
// long sequence of trades cannot drift through float accumulation.
type Portfolio struct {
	state    PortfolioState
	cash     decimal.Decimal
	holdings map[string]types.Holding
}

func NewPortfolio() *Portfolio {
	return &Portfolio{
		state:    PortfolioStateUninitialized,
		holdings: make(map[string]types.Holding),
	}
}

// Init funds the portfolio and moves it to ACTIVE.
func (p *Portfolio) Init(initialCapital float64) error {
	if p.state != PortfolioStateUninitialized {
		return errors.Newf(errors.ErrCodeInvalidPortfolioState, "cannot initialize portfolio in state %s", p.state)
	}
	if initialCapital <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "initial capital must be positive")
	}

	p.cash = roundCash(decimal.NewFromFloat(initialCapital))
	p.state = PortfolioStateActive

	return nil
}

// Finalize freezes the portfolio after the closing liquidation.
func (p *Portfolio) Finalize() error {
	if p.state != PortfolioStateActive {
		return errors.Newf(errors.ErrCodeInvalidPortfolioState, "cannot finalize portfolio in state %s", p.state)
	}
	if len(p.holdings) != 0 {
		return errors.Newf(errors.ErrCodeInvariantViolation, "finalizing with %d open positions", len(p.holdings))
	}

	p.state = PortfolioStateFinalized

	return nil
}

func (p *Portfolio) State() PortfolioState {
	return p.state
}

// Cash returns the cash balance as a float rounded to two places.
func (p *Portfolio) Cash() float64 {
	v, _ := p.cash.Float64()
	return v
}

// Holding returns the open position for a symbol, if any.
func (p *Portfolio) Holding(symbol string) (types.Holding, bool) {
	h, ok := p.holdings[symbol]
	return h, ok
}

// Symbols returns every symbol with an open position, unordered.
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.holdings))
	for symbol := range p.holdings {
		out = append(out, symbol)
	}

	return out
}

// Buy executes a purchase at the given price and records the resulting
// transaction. Cash must cover the full cost.
func (p *Portfolio) Buy(date time.Time, symbol string, quantity int64, price float64, reason string, prices map[string]float64) (types.Transaction, error) {
	if p.state != PortfolioStateActive {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInvalidPortfolioState, "cannot trade in state %s", p.state)
	}
	if quantity <= 0 || price <= 0 {
		return types.Transaction{}, errors.New(errors.ErrCodeInvalidTransaction, "buy requires positive quantity and price")
	}

	cost := roundCash(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity)))
	if cost.GreaterThan(p.cash) {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInsufficientCash,
			"buying %d %s costs %s with only %s available", quantity, symbol, cost.StringFixed(2), p.cash.StringFixed(2))
	}

	p.cash = p.cash.Sub(cost)

	h := p.holdings[symbol]
	totalCost := h.AvgPrice*float64(h.Quantity) + price*float64(quantity)
	h.Symbol = symbol
	h.Quantity += quantity
	h.AvgPrice = totalCost / float64(h.Quantity)
	p.holdings[symbol] = h

	return p.record(date, symbol, types.TransactionActionBuy, quantity, price, cost, reason, prices)
}

// Sell executes a sale of an existing position.
func (p *Portfolio) Sell(date time.Time, symbol string, quantity int64, price float64, reason string, prices map[string]float64) (types.Transaction, error) {
	if p.state != PortfolioStateActive {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInvalidPortfolioState, "cannot trade in state %s", p.state)
	}
	if quantity <= 0 || price <= 0 {
		return types.Transaction{}, errors.New(errors.ErrCodeInvalidTransaction, "sell requires positive quantity and price")
	}

	h, ok := p.holdings[symbol]
	if !ok {
		return types.Transaction{}, errors.Newf(errors.ErrCodePositionNotFound, "no open position in %s", symbol)
	}
	if quantity > h.Quantity {
		return types.Transaction{}, errors.Newf(errors.ErrCodeInvalidTransaction,
			"selling %d %s exceeds position of %d", quantity, symbol, h.Quantity)
	}

	proceeds := roundCash(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity)))
	p.cash = p.cash.Add(proceeds)

	h.Quantity -= quantity
	if h.Quantity == 0 {
		delete(p.holdings, symbol)
	} else {
		p.holdings[symbol] = h
	}

	return p.record(date, symbol, types.TransactionActionSell, quantity, price, proceeds, reason, prices)
}

func (p *Portfolio) record(date time.Time, symbol string, action types.TransactionAction, quantity int64, price float64, total decimal.Decimal, reason string, prices map[string]float64) (types.Transaction, error) {
	totalValue, _ := total.Float64()
	tx := types.Transaction{
		ID:             uuid.New().String(),
		Date:           date,
		Symbol:         symbol,
		Action:         action,
		Quantity:       quantity,
		Price:          price,
		TotalValue:     totalValue,
		CashBalance:    p.Cash(),
		PortfolioValue: p.Value(prices),
		Reason:         reason,
	}

	if err := tx.Validate(); err != nil {
		return types.Transaction{}, err
	}
	if err := p.checkInvariants(); err != nil {
		return types.Transaction{}, err
	}

	return tx, nil
}

// Value marks the portfolio to the given prices. Positions without a quoted
// price fall back to their average cost.
func (p *Portfolio) Value(prices map[string]float64) float64 {
	total := p.cash
	for symbol, h := range p.holdings {
		price, ok := prices[symbol]
		if !ok {
			price = h.AvgPrice
		}
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(h.Quantity)))
	}

	v, _ := roundCash(total).Float64()
	return v
}

// Snapshot captures the portfolio composition marked to the given prices.
func (p *Portfolio) Snapshot(date time.Time, prices map[string]float64) types.PortfolioSnapshot {
	holdings := make(map[string]types.HoldingDetail, len(p.holdings))
	for symbol, h := range p.holdings {
		price, ok := prices[symbol]
		if !ok {
			price = h.AvgPrice
		}
		holdings[symbol] = types.HoldingDetail{
			Symbol:       symbol,
			Quantity:     h.Quantity,
			AvgPrice:     h.AvgPrice,
			CurrentPrice: price,
			Value:        price * float64(h.Quantity),
		}
	}

	return types.PortfolioSnapshot{
		Date:        date,
		Holdings:    holdings,
		CashBalance: p.Cash(),
		TotalValue:  p.Value(prices),
	}
}

func (p *Portfolio) checkInvariants() error {
	if p.cash.IsNegative() {
		return errors.Newf(errors.ErrCodeInvariantViolation, "cash balance is negative: %s", p.cash.StringFixed(2))
	}
	for symbol, h := range p.holdings {
		if h.Quantity <= 0 {
			return errors.Newf(errors.ErrCodeInvariantViolation, "non-positive position in %s: %d", symbol, h.Quantity)
		}
	}

	return nil
}

// roundCash quantizes to two decimal places, rounding half away from zero.
func roundCash(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
