// Package trade holds the trade record kept by the repository: a plan, its
// dated analyses and the contracts executed against it.
package trade

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guyvdb/tradestore/fault"
)

// Trade is a position in one symbol built from one or more contracts.
//
// ID is zero until the repository assigns one. Position is the net number of
// shares held and UnfilledPosition what remains to buy to reach the plan.
type Trade struct {
	ID               int64      `json:"id"`
	Symbol           string     `json:"symbol"`
	Plan             *Plan      `json:"plan"`
	Analyses         []Analysis `json:"analyses"`
	Contracts        []Contract `json:"contracts"`
	Position         int64      `json:"position"`
	UnfilledPosition int64      `json:"unfilledPosition"`
}

// New starts a trade in symbol on plan.
func New(symbol string, plan *Plan) (*Trade, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required: %w", fault.ErrInvalidArgument)
	}
	if plan == nil {
		return nil, fmt.Errorf("plan is required: %w", fault.ErrInvalidArgument)
	}
	t := &Trade{
		Symbol:    symbol,
		Plan:      plan,
		Analyses:  make([]Analysis, 0),
		Contracts: make([]Contract, 0),
	}
	plan.CalculatePosition()
	t.calculatePosition()
	return t, nil
}

// IsClosed reports whether the trade has contracts and no shares held.
func (t *Trade) IsClosed() bool {
	return t.Position == 0 && len(t.Contracts) > 0
}

// ClosureDate returns the date of the latest sale of a closed trade. Open
// trades have no closure date.
func (t *Trade) ClosureDate() (time.Time, bool) {
	if !t.IsClosed() {
		return time.Time{}, false
	}
	return t.LastSaleDate()
}

// LastSaleDate returns the date of the latest sale contract.
func (t *Trade) LastSaleDate() (time.Time, bool) {
	var last time.Time
	found := false
	for _, c := range t.Contracts {
		if c.Sale && (!found || c.Date.After(last)) {
			last = c.Date
			found = true
		}
	}
	return last, found
}

// Buy records a purchase. A contract id of zero allocates the next id; an
// existing purchase with the same id is replaced.
func (t *Trade) Buy(calc *Calculator, id int, size int64, price decimal.Decimal, date time.Time, intraDay bool) (Contract, error) {
	slog.Debug("Trade.Buy() - purchase", "trade", t.ID, "symbol", t.Symbol, "size", size)
	return t.record(NewContract(calc, id, date, size, price, false, intraDay))
}

// Sell records a sale. Ids behave as for Buy.
func (t *Trade) Sell(calc *Calculator, id int, size int64, price decimal.Decimal, date time.Time, intraDay bool) (Contract, error) {
	slog.Debug("Trade.Sell() - sale", "trade", t.ID, "symbol", t.Symbol, "size", size)
	return t.record(NewContract(calc, id, date, size, price, true, intraDay))
}

func (t *Trade) record(c Contract) (Contract, error) {
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid contract: %w: %w", fault.ErrInvalidArgument, err)
	}
	if c.ID != 0 {
		kept := t.Contracts[:0]
		for _, old := range t.Contracts {
			if old.ID != c.ID || old.Sale != c.Sale {
				kept = append(kept, old)
			}
		}
		t.Contracts = kept
	} else {
		c.ID = 1
		for _, old := range t.Contracts {
			if old.ID >= c.ID {
				c.ID = old.ID + 1
			}
		}
	}
	t.Contracts = append(t.Contracts, c)
	sort.SliceStable(t.Contracts, func(i, j int) bool {
		return t.Contracts[i].ID < t.Contracts[j].ID
	})
	t.calculatePosition()
	return c, nil
}

// UpdatePlan replaces the plan and recomputes the unfilled position.
func (t *Trade) UpdatePlan(plan *Plan) {
	plan.CalculatePosition()
	t.Plan = plan
	t.calculatePosition()
}

// AddOrUpdateAnalysis keeps at most one analysis per day.
func (t *Trade) AddOrUpdateAnalysis(a Analysis) {
	a.Date = Day(a.Date)
	kept := t.Analyses[:0]
	for _, old := range t.Analyses {
		if !old.Date.Equal(a.Date) {
			kept = append(kept, old)
		}
	}
	t.Analyses = append(kept, a)
}

// CurrentAnalysis returns the latest analysis, falling back to the plan.
func (t *Trade) CurrentAnalysis() Analysis {
	if n := len(t.Analyses); n > 0 {
		return t.Analyses[n-1]
	}
	if t.Plan == nil {
		return Analysis{}
	}
	mid := t.Plan.BuyRangeHigh.Add(t.Plan.BuyRangeLow).Div(decimal.NewFromInt(2))
	return Analysis{Date: t.Plan.Date, Price: mid, StopLoss: t.Plan.StopLoss}
}

// ContractIDs returns the id of every contract.
func (t *Trade) ContractIDs() []int {
	ids := make([]int, 0, len(t.Contracts))
	for _, c := range t.Contracts {
		ids = append(ids, c.ID)
	}
	return ids
}

// HoldingSize is shares bought minus shares sold.
func (t *Trade) HoldingSize() int64 {
	return t.size(false) - t.size(true)
}

// TotalBuyPrice sums the purchases.
func (t *Trade) TotalBuyPrice() decimal.Decimal {
	return t.total(false)
}

// TotalSalePrice sums the sales.
func (t *Trade) TotalSalePrice() decimal.Decimal {
	return t.total(true)
}

// TotalCharges sums the charges of every contract.
func (t *Trade) TotalCharges() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range t.Contracts {
		sum = sum.Add(c.Charges)
	}
	return sum.Round(2)
}

// AverageBuyPrice is the size weighted purchase price, or zero.
func (t *Trade) AverageBuyPrice() decimal.Decimal {
	bought := t.size(false)
	if bought == 0 {
		return decimal.Zero
	}
	return t.TotalBuyPrice().Div(decimal.NewFromInt(bought))
}

// CurrentInvestment values the shares held at the average buy price.
func (t *Trade) CurrentInvestment() decimal.Decimal {
	return t.AverageBuyPrice().Mul(decimal.NewFromInt(t.HoldingSize())).Round(2)
}

// GrossPnL is sale proceeds less the average cost of the shares sold.
func (t *Trade) GrossPnL() decimal.Decimal {
	sold := t.size(true)
	if sold == 0 {
		return decimal.Zero
	}
	cost := t.AverageBuyPrice().Mul(decimal.NewFromInt(sold))
	return t.TotalSalePrice().Sub(cost).Round(2)
}

// RealisedPnL is GrossPnL less all charges.
func (t *Trade) RealisedPnL() decimal.Decimal {
	if t.size(true) == 0 {
		return decimal.Zero
	}
	return t.GrossPnL().Sub(t.TotalCharges()).Round(2)
}

// UnrealisedPnL marks the open position to the latest analysis price.
func (t *Trade) UnrealisedPnL() decimal.Decimal {
	if t.Position == 0 || len(t.Analyses) == 0 {
		return decimal.Zero
	}
	price := t.Analyses[len(t.Analyses)-1].Price
	held := decimal.NewFromInt(t.Position)
	return price.Mul(held).Sub(t.AverageBuyPrice().Mul(held)).Round(2)
}

// Normalize repairs a decoded trade in place and returns the anomalies it
// found, each of which is also logged.
func (t *Trade) Normalize() []string {
	var anomalies []string
	note := func(msg string) {
		anomalies = append(anomalies, msg)
		slog.Warn("Trade.Normalize() - "+msg, "trade", t.ID, "symbol", t.Symbol)
	}

	if t.Analyses == nil {
		t.Analyses = make([]Analysis, 0)
	}
	if t.Contracts == nil {
		note("contract history was missing")
		t.Contracts = make([]Contract, 0)
	}
	kept := t.Contracts[:0]
	for _, c := range t.Contracts {
		if c.ID == 0 || c.Size <= 0 {
			note(fmt.Sprintf("dropped unusable contract %d", c.ID))
			continue
		}
		kept = append(kept, c)
	}
	t.Contracts = kept
	if strings.TrimSpace(t.Symbol) == "" {
		note("symbol is empty")
	}
	if t.Plan == nil {
		note("plan is missing")
	}

	before := t.Position
	t.calculatePosition()
	if before != t.Position {
		note(fmt.Sprintf("position corrected from %d to %d", before, t.Position))
	}
	return anomalies
}

func (t *Trade) calculatePosition() {
	t.Position = t.HoldingSize()
	planned := int64(0)
	if t.Plan != nil {
		planned = t.Plan.Position
	}
	t.UnfilledPosition = planned - t.Position
}

func (t *Trade) size(sale bool) int64 {
	var n int64
	for _, c := range t.Contracts {
		if c.Sale == sale {
			n += c.Size
		}
	}
	return n
}

func (t *Trade) total(sale bool) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range t.Contracts {
		if c.Sale == sale {
			sum = sum.Add(c.TotalPrice)
		}
	}
	return sum.Round(2)
}
