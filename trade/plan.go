package trade

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Plan is the analysis a trade was opened on. Its Position is the number of
// shares that risks PercentRisked of Capital between the buy range midpoint
// and the stop loss.
type Plan struct {
	Date          time.Time       `json:"date"`
	Capital       decimal.Decimal `json:"capital"`
	PercentRisked decimal.Decimal `json:"percentRisked"`
	BuyRangeLow   decimal.Decimal `json:"buyRangeLow"`
	BuyRangeHigh  decimal.Decimal `json:"buyRangeHigh"`
	Target        decimal.Decimal `json:"target"`
	StopLoss      decimal.Decimal `json:"stopLoss"`
	Position      int64           `json:"position"`
	Notes         string          `json:"notes,omitempty"`
}

// CalculatePosition recomputes and stores Position.
func (p *Plan) CalculatePosition() int64 {
	mid := p.BuyRangeHigh.Add(p.BuyRangeLow).Div(decimal.NewFromInt(2))
	p.Position = p.PositionAt(mid)
	return p.Position
}

// PositionAt returns the share count risking the planned capital when
// buying at price.
func (p *Plan) PositionAt(price decimal.Decimal) int64 {
	if price.Equal(p.StopLoss) {
		price = price.Add(decimal.NewFromInt(1))
	}
	risk := price.Sub(p.StopLoss)
	if !risk.IsPositive() {
		return 0
	}
	atRisk := p.Capital.Mul(p.PercentRisked).Div(hundred)
	return atRisk.Div(risk).IntPart()
}

// Analysis is a dated review of an open trade.
type Analysis struct {
	Date     time.Time       `json:"date"`
	Price    decimal.Decimal `json:"price"`
	StopLoss decimal.Decimal `json:"stopLoss"`
	Notes    string          `json:"notes,omitempty"`
}
