// Package account keeps the cash ledger of the trading account.
package account

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guyvdb/tradestore/fault"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	Capital EntryType = "capital"
	Trade   EntryType = "trade"
)

// Entry is one ledger line. Trade entries carry the business transaction id
// of the contract they settle, see TransactionID.
type Entry struct {
	Type          EntryType       `json:"type"`
	TransactionID string          `json:"transactionId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	TradeClosed   bool            `json:"tradeClosed"`
}

// Account is the single trading account.
type Account struct {
	CashBalance decimal.Decimal `json:"cashBalance"`
	History     []Entry         `json:"history"`
}

// New returns an empty account.
func New() *Account {
	return &Account{History: make([]Entry, 0)}
}

// TransactionID identifies the ledger entry of one contract of a trade.
func TransactionID(tradeID int64, contractID int) string {
	return strconv.FormatInt(tradeID, 10) + "-" + strconv.Itoa(contractID)
}

// AddCapital credits amount. Non-positive amounts are ignored.
func (a *Account) AddCapital(amount decimal.Decimal, date time.Time) {
	if !amount.IsPositive() {
		return
	}
	a.record(Capital, "", amount, date)
}

// WithdrawCapital debits amount. Non-positive amounts are ignored.
func (a *Account) WithdrawCapital(amount decimal.Decimal, date time.Time) {
	if !amount.IsPositive() {
		return
	}
	a.record(Capital, "", amount.Neg(), date)
}

// RecordSale credits the proceeds of a sale net of charges. Recording the
// same contract again replaces its entry.
func (a *Account) RecordSale(amount, charges decimal.Decimal, date time.Time, tradeID int64, contractID int) {
	if !amount.IsPositive() {
		return
	}
	a.record(Trade, TransactionID(tradeID, contractID), amount.Sub(charges), date)
}

// RecordPurchase debits the cost of a purchase plus charges.
func (a *Account) RecordPurchase(amount, charges decimal.Decimal, date time.Time, tradeID int64, contractID int) {
	if !amount.IsPositive() {
		return
	}
	a.record(Trade, TransactionID(tradeID, contractID), amount.Add(charges).Neg(), date)
}

// CloseTrade flags the entries of the given contracts as belonging to a
// closed trade.
func (a *Account) CloseTrade(tradeID int64, contractIDs []int) {
	for _, id := range contractIDs {
		txID := TransactionID(tradeID, id)
		for i := range a.History {
			if a.History[i].TransactionID == txID {
				a.History[i].TradeClosed = true
			}
		}
	}
}

// DeleteTrade reverses the entries of the given contracts. Every contract
// must have an entry.
func (a *Account) DeleteTrade(tradeID int64, contractIDs []int) error {
	for _, id := range contractIDs {
		if err := a.reverse(TransactionID(tradeID, id)); err != nil {
			return err
		}
	}
	return nil
}

// ClosingBalanceOn sums every entry dated on or before date.
func (a *Account) ClosingBalanceOn(date time.Time) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range a.History {
		if !e.Date.After(date) {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// DeleteTillAndIncluding drops every entry dated on or before date.
func (a *Account) DeleteTillAndIncluding(date time.Time) {
	kept := a.History[:0]
	for _, e := range a.History {
		if e.Date.After(date) {
			kept = append(kept, e)
		}
	}
	a.History = kept
}

func (a *Account) record(typ EntryType, txID string, amount decimal.Decimal, date time.Time) {
	if a.History == nil {
		a.History = make([]Entry, 0)
	}
	delta := amount
	if txID != "" {
		kept := a.History[:0]
		for _, e := range a.History {
			if e.TransactionID == txID {
				delta = delta.Sub(e.Amount)
				continue
			}
			kept = append(kept, e)
		}
		a.History = kept
	}
	a.History = append(a.History, Entry{Type: typ, TransactionID: txID, Amount: amount, Date: date})
	a.CashBalance = a.CashBalance.Add(delta)
	slog.Debug("Account.record() - entry", "type", string(typ), "transaction", txID, "amount", amount.String(), "balance", a.CashBalance.String())
}

func (a *Account) reverse(txID string) error {
	for i, e := range a.History {
		if e.TransactionID == txID {
			a.History = append(a.History[:i], a.History[i+1:]...)
			a.CashBalance = a.CashBalance.Sub(e.Amount)
			return nil
		}
	}
	return fmt.Errorf("ledger entry %s: %w", txID, fault.ErrNotFound)
}
