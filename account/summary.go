package account

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodSummary reports the account over [From, To].
type PeriodSummary struct {
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	Opening          decimal.Decimal `json:"opening"`
	Closing          decimal.Decimal `json:"closing"`
	Invested         decimal.Decimal `json:"invested"`
	CapitalInfused   decimal.Decimal `json:"capitalInfused"`
	CapitalWithdrawn decimal.Decimal `json:"capitalWithdrawn"`
}

// CapitalForPositionCalculation is the capital available to size new trades.
func (s PeriodSummary) CapitalForPositionCalculation() decimal.Decimal {
	return s.Opening.Add(s.CapitalInfused).Sub(s.CapitalWithdrawn)
}

func (s PeriodSummary) String() string {
	return fmt.Sprintf("%s to %s Opening:%s Closing:%s Invested:%s Capital IN:%s OUT:%s",
		s.From.Format(time.DateOnly), s.To.Format(time.DateOnly),
		s.Opening.StringFixed(2), s.Closing.StringFixed(2), s.Invested.StringFixed(2),
		s.CapitalInfused.StringFixed(2), s.CapitalWithdrawn.StringFixed(2))
}

// Summary reports the period from..to, both inclusive. The opening balance
// is the closing balance of the day before from. Invested is the cash tied up
// in trades still open at to, reported as a positive amount.
func (a *Account) Summary(from, to time.Time) PeriodSummary {
	s := PeriodSummary{
		From:             from,
		To:               to,
		Opening:          a.ClosingBalanceOn(from.AddDate(0, 0, -1)),
		Closing:          a.ClosingBalanceOn(to),
		Invested:         decimal.Zero,
		CapitalInfused:   decimal.Zero,
		CapitalWithdrawn: decimal.Zero,
	}
	for _, e := range a.History {
		inPeriod := !e.Date.Before(from) && !e.Date.After(to)
		switch {
		case e.Type == Trade && !e.TradeClosed && !e.Date.After(to):
			s.Invested = s.Invested.Sub(e.Amount)
		case e.Type == Capital && inPeriod && e.Amount.IsPositive():
			s.CapitalInfused = s.CapitalInfused.Add(e.Amount)
		case e.Type == Capital && inPeriod && e.Amount.IsNegative():
			s.CapitalWithdrawn = s.CapitalWithdrawn.Sub(e.Amount)
		}
	}
	return s
}
