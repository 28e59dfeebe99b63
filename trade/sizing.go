package trade

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guyvdb/tradestore/fault"
)

// Sizing is a proposed purchase: its value, the estimated round trip charges
// and the number of shares.
type Sizing struct {
	Value    decimal.Decimal `json:"value"`
	Charges  decimal.Decimal `json:"charges"`
	Position int64           `json:"position"`
}

// Holding summarizes an open trade for the portfolio view.
type Holding struct {
	ID                       int64           `json:"id"`
	Symbol                   string          `json:"symbol"`
	Position                 int64           `json:"position"`
	AveragePrice             decimal.Decimal `json:"averagePrice"`
	UnfilledPosition         int64           `json:"unfilledPosition"`
	CurrentInvestment        decimal.Decimal `json:"currentInvestment"`
	CurrentInvestmentCharges decimal.Decimal `json:"currentInvestmentCharges"`
	RealisedPnL              decimal.Decimal `json:"realisedPnl"`
	UnrealisedPnL            decimal.Decimal `json:"unrealisedPnl"`
}

// StopLoss is the stop of the current analysis.
func (t *Trade) StopLoss() decimal.Decimal {
	return t.CurrentAnalysis().StopLoss
}

// TrailStopLoss raises the stop to price in the analysis dated on, starting
// from the current analysis when there is none for that day. A stop may
// only move up, and only while the trade is open.
func (t *Trade) TrailStopLoss(price decimal.Decimal, on time.Time) error {
	if t.IsClosed() {
		return fmt.Errorf("trade %d is closed: %w", t.ID, fault.ErrInvalidArgument)
	}
	if !price.IsPositive() {
		return fmt.Errorf("stop loss %s: %w", price, fault.ErrInvalidArgument)
	}
	current := t.CurrentAnalysis()
	if price.LessThan(current.StopLoss) {
		return fmt.Errorf("stop loss %s is below %s: %w", price, current.StopLoss, fault.ErrInvalidArgument)
	}
	current.Date = on
	current.StopLoss = price
	t.AddOrUpdateAnalysis(current)
	slog.Debug("Trade.TrailStopLoss() - stop raised", "trade", t.ID, "symbol", t.Symbol, "stopLoss", price.String())
	return nil
}

// PositionAt sizes a purchase at price against the plan's risk.
func (t *Trade) PositionAt(calc *Calculator, price decimal.Decimal) (Sizing, error) {
	if err := t.canSize(price); err != nil {
		return Sizing{}, err
	}
	return sized(calc, t.Plan.PositionAt(price), price), nil
}

// ScaleIn sizes an addition at price with a stop at stopLoss, or at the plan
// stop when stopLoss is not positive. The capital still at risk is the
// planned risk plus the open profit of the shares held.
func (t *Trade) ScaleIn(calc *Calculator, price, stopLoss decimal.Decimal) (Sizing, error) {
	if err := t.canSize(price); err != nil {
		return Sizing{}, err
	}
	if !stopLoss.IsPositive() {
		stopLoss = t.Plan.StopLoss
	}
	atRisk := t.Plan.Capital.Mul(t.Plan.PercentRisked).Div(hundred)
	remaining := atRisk.Add(t.openProfit(price))
	if !remaining.IsPositive() {
		return Sizing{}, nil
	}
	return sized(calc, remaining.Div(riskPerShare(price, stopLoss)).IntPart(), price), nil
}

// Pyramid sizes an addition paid for by open profit. lockIn percent of the
// profit at price is kept back and the rest is risked down to stopLoss.
func (t *Trade) Pyramid(calc *Calculator, price, stopLoss, lockIn decimal.Decimal) (Sizing, error) {
	if err := t.canSize(price); err != nil {
		return Sizing{}, err
	}
	if lockIn.IsNegative() || lockIn.GreaterThan(hundred) {
		return Sizing{}, fmt.Errorf("lock in %s%%: %w", lockIn, fault.ErrInvalidArgument)
	}
	profit := t.openProfit(price)
	risked := profit.Sub(profit.Mul(lockIn).Div(hundred))
	n := risked.Div(riskPerShare(price, stopLoss)).IntPart()
	if n <= 0 {
		return Sizing{}, nil
	}
	return sized(calc, n, price), nil
}

// Holding returns the portfolio line of the trade.
func (t *Trade) Holding() Holding {
	return Holding{
		ID:                       t.ID,
		Symbol:                   t.Symbol,
		Position:                 t.Position,
		AveragePrice:             t.AverageBuyPrice().Round(2),
		UnfilledPosition:         t.UnfilledPosition,
		CurrentInvestment:        t.CurrentInvestment(),
		CurrentInvestmentCharges: t.CurrentInvestmentCharges(),
		RealisedPnL:              t.RealisedPnL(),
		UnrealisedPnL:            t.UnrealisedPnL(),
	}
}

// CurrentInvestmentCharges apportions the charges paid to the shares held.
func (t *Trade) CurrentInvestmentCharges() decimal.Decimal {
	bought := t.size(false)
	if bought == 0 {
		return decimal.Zero
	}
	perShare := t.TotalCharges().Div(decimal.NewFromInt(bought))
	return perShare.Mul(decimal.NewFromInt(t.HoldingSize())).Round(2)
}

// Portfolio returns a holding per trade, in order.
func Portfolio(trades []*Trade) []Holding {
	out := make([]Holding, 0, len(trades))
	for _, t := range trades {
		out = append(out, t.Holding())
	}
	return out
}

func (t *Trade) canSize(price decimal.Decimal) error {
	if t.Plan == nil {
		return fmt.Errorf("trade %d has no plan: %w", t.ID, fault.ErrInvalidArgument)
	}
	if !price.IsPositive() {
		return fmt.Errorf("price %s: %w", price, fault.ErrInvalidArgument)
	}
	return nil
}

// openProfit marks the shares held to price, net of everything paid so far.
func (t *Trade) openProfit(price decimal.Decimal) decimal.Decimal {
	cost := t.TotalBuyPrice().Add(t.TotalCharges())
	return price.Mul(decimal.NewFromInt(t.HoldingSize())).Sub(cost)
}

// riskPerShare falls back to one when the stop is at or above price.
func riskPerShare(price, stopLoss decimal.Decimal) decimal.Decimal {
	risk := price.Sub(stopLoss)
	if !risk.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return risk
}

func sized(calc *Calculator, n int64, price decimal.Decimal) Sizing {
	if n <= 0 {
		return Sizing{}
	}
	value := price.Mul(decimal.NewFromInt(n)).Round(2)
	return Sizing{
		Value:    value,
		Charges:  calc.EstimateCostOfTrade(value, false).Total(),
		Position: n,
	}
}
