package trade

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EarliestContractDate is the oldest date a contract may carry.
var EarliestContractDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Contract is one executed order of a trade, either a purchase or a sale.
type Contract struct {
	ID           int             `json:"id"`
	Date         time.Time       `json:"date"`
	Size         int64           `json:"size"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	Charges      decimal.Decimal `json:"charges"`
	Sale         bool            `json:"sale"`
	IntraDay     bool            `json:"intraDay"`
}

// NewContract prices a contract of size shares at averagePrice on date.
func NewContract(calc *Calculator, id int, date time.Time, size int64, averagePrice decimal.Decimal, sale, intraDay bool) Contract {
	total := averagePrice.Mul(decimal.NewFromInt(size)).Round(2)
	return Contract{
		ID:           id,
		Date:         Day(date),
		Size:         size,
		AveragePrice: averagePrice,
		TotalPrice:   total,
		Charges:      calc.EstimateCostOfTrade(total, intraDay).Total(),
		Sale:         sale,
		IntraDay:     intraDay,
	}
}

// Validate reports every field that makes c unusable.
func (c Contract) Validate() error {
	var errs []error
	if c.Size <= 0 {
		errs = append(errs, errors.New("size must be positive"))
	}
	if !c.AveragePrice.IsPositive() {
		errs = append(errs, errors.New("average price must be positive"))
	}
	if c.Date.Before(EarliestContractDate) {
		errs = append(errs, fmt.Errorf("date must not be before %s", EarliestContractDate.Format(time.DateOnly)))
	}
	return errors.Join(errs...)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
