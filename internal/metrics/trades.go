package metrics

import (
	"sort"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// RoundTrip is one closed buy/sell pair produced by FIFO lot matching. A
// sell larger than the oldest open lot closes several trips; a partial sell
// leaves the remainder of the lot open.
type RoundTrip struct {
	Symbol    string
	Quantity  int64
	BuyDate   time.Time
	SellDate  time.Time
	BuyPrice  float64
	SellPrice float64
	PnL       float64
}

// Return is the trip's percentage return on cost.
func (t RoundTrip) Return() float64 {
	cost := t.BuyPrice * float64(t.Quantity)
	if cost == 0 {
		return 0
	}

	return t.PnL / cost * 100
}

type lot struct {
	date     time.Time
	quantity int64
	price    float64
}

// RoundTrips matches sells against buys per symbol in FIFO order. Open lots
// at the end of the history produce no trips; the simulator's final
// liquidation means a completed run leaves none.
func RoundTrips(transactions []types.Transaction) []RoundTrip {
	sorted := make([]types.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	open := make(map[string][]lot)
	var trips []RoundTrip

	for _, tx := range sorted {
		switch tx.Action {
		case types.TransactionActionBuy:
			open[tx.Symbol] = append(open[tx.Symbol], lot{date: tx.Date, quantity: tx.Quantity, price: tx.Price})

		case types.TransactionActionSell:
			remaining := tx.Quantity
			lots := open[tx.Symbol]
			for remaining > 0 && len(lots) > 0 {
				matched := lots[0].quantity
				if matched > remaining {
					matched = remaining
				}

				trips = append(trips, RoundTrip{
					Symbol:    tx.Symbol,
					Quantity:  matched,
					BuyDate:   lots[0].date,
					SellDate:  tx.Date,
					BuyPrice:  lots[0].price,
					SellPrice: tx.Price,
					PnL:       (tx.Price - lots[0].price) * float64(matched),
				})

				remaining -= matched
				lots[0].quantity -= matched
				if lots[0].quantity == 0 {
					lots = lots[1:]
				}
			}
			open[tx.Symbol] = lots
		}
	}

	return trips
}

// WinRate is the share of round trips with positive profit, in percent.
func WinRate(trips []RoundTrip) float64 {
	if len(trips) == 0 {
		return 0
	}

	wins := 0
	for _, t := range trips {
		if t.PnL > 0 {
			wins++
		}
	}

	return float64(wins) / float64(len(trips)) * 100
}

// ProfitFactor is gross profit over gross loss. With no losses it returns
// the gross profit itself, keeping the figure finite.
func ProfitFactor(trips []RoundTrip) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for _, t := range trips {
		if t.PnL > 0 {
			grossProfit += t.PnL
		} else {
			grossLoss += -t.PnL
		}
	}

	if grossLoss == 0 {
		return grossProfit
	}

	return grossProfit / grossLoss
}

// SymbolPerformances aggregates round trips per symbol.
func SymbolPerformances(trips []RoundTrip) []types.SymbolPerformance {
	type agg struct {
		pnl     float64
		cost    float64
		trades  int
		wins    int
		holding int
	}

	bySymbol := make(map[string]*agg)
	for _, t := range trips {
		a, ok := bySymbol[t.Symbol]
		if !ok {
			a = &agg{}
			bySymbol[t.Symbol] = a
		}
		a.pnl += t.PnL
		a.cost += t.BuyPrice * float64(t.Quantity)
		a.trades++
		if t.PnL > 0 {
			a.wins++
		}
		a.holding += int(t.SellDate.Sub(t.BuyDate).Hours() / 24)
	}

	out := make([]types.SymbolPerformance, 0, len(bySymbol))
	for symbol, a := range bySymbol {
		perf := types.SymbolPerformance{
			Symbol:   symbol,
			TotalPnL: a.pnl,
			Trades:   a.trades,
		}
		if a.cost > 0 {
			perf.TotalReturn = a.pnl / a.cost * 100
		}
		if a.trades > 0 {
			perf.WinRate = float64(a.wins) / float64(a.trades) * 100
			perf.HoldingPeriodDays = a.holding / a.trades
		}
		if years := float64(perf.HoldingPeriodDays) / calendarDaysPerYear; years > 0 {
			perf.AnnualizedReturn = AnnualizedReturn(perf.TotalReturn, years)
		}
		out = append(out, perf)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	return out
}
