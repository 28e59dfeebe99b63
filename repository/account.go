package repository

import (
	"fmt"
	"log/slog"

	"github.com/guyvdb/tradestore/account"
	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/store"
	"github.com/guyvdb/tradestore/trade"
)

// AccountID is the key of the single account row.
const AccountID int64 = 1

// AccountRepository keeps the trading account ledger. Every posting reads,
// changes and writes the account inside one transaction.
type AccountRepository struct {
	accounts *store.Store[int64, account.Account]
}

// OpenAccount opens or creates the account table under layout.Dir.
func OpenAccount(layout Layout, opts ...Option) (*AccountRepository, error) {
	o := buildOptions(opts)
	s, err := store.Open[int64, account.Account](layout.Dir(), AccountTable, o.storeOptions(layout)...)
	if err != nil {
		return nil, err
	}
	return &AccountRepository{accounts: s}, nil
}

// Account returns the stored account, or a new empty one.
func (r *AccountRepository) Account() (*account.Account, error) {
	a, found, err := r.accounts.Find(AccountID)
	if err != nil {
		return nil, err
	}
	if !found {
		return account.New(), nil
	}
	return &a, nil
}

// Save replaces the stored account.
func (r *AccountRepository) Save(a *account.Account) error {
	if a == nil {
		return fmt.Errorf("account is nil: %w", fault.ErrInvalidArgument)
	}
	return r.accounts.Save(AccountID, *a)
}

// PostSale credits a sale contract of trade tradeID.
func (r *AccountRepository) PostSale(tradeID int64, c trade.Contract) error {
	if err := validatePosting(tradeID, c); err != nil {
		return err
	}
	if !c.Sale {
		return fmt.Errorf("contract %d is not a sale: %w", c.ID, fault.ErrInvalidArgument)
	}
	return r.update("post sale", func(a *account.Account) error {
		a.RecordSale(c.TotalPrice, c.Charges, c.Date, tradeID, c.ID)
		return nil
	})
}

// PostPurchase debits a purchase contract of trade tradeID.
func (r *AccountRepository) PostPurchase(tradeID int64, c trade.Contract) error {
	if err := validatePosting(tradeID, c); err != nil {
		return err
	}
	if c.Sale {
		return fmt.Errorf("contract %d is not a purchase: %w", c.ID, fault.ErrInvalidArgument)
	}
	return r.update("post purchase", func(a *account.Account) error {
		a.RecordPurchase(c.TotalPrice, c.Charges, c.Date, tradeID, c.ID)
		return nil
	})
}

// CloseTrade flags the ledger entries of the given contracts as closed.
func (r *AccountRepository) CloseTrade(tradeID int64, contractIDs []int) error {
	if contractIDs == nil {
		return fmt.Errorf("contract ids are required: %w", fault.ErrInvalidArgument)
	}
	return r.update("close trade", func(a *account.Account) error {
		a.CloseTrade(tradeID, contractIDs)
		return nil
	})
}

// DeleteTrade reverses the ledger entries of the given contracts.
func (r *AccountRepository) DeleteTrade(tradeID int64, contractIDs []int) error {
	if contractIDs == nil {
		return fmt.Errorf("contract ids are required: %w", fault.ErrInvalidArgument)
	}
	return r.update("delete trade", func(a *account.Account) error {
		return a.DeleteTrade(tradeID, contractIDs)
	})
}

// Close closes the account table.
func (r *AccountRepository) Close() error {
	return r.accounts.Close()
}

// Drop closes the account table and deletes its file.
func (r *AccountRepository) Drop() error {
	return r.accounts.Drop()
}

func (r *AccountRepository) update(op string, fn func(*account.Account) error) error {
	tx, err := r.accounts.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, found, err := r.accounts.FindTx(tx, AccountID)
	if err != nil {
		return err
	}
	if !found {
		a = *account.New()
	}
	if err := fn(&a); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.accounts.SaveTx(tx, AccountID, a); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("AccountRepository.update() - committed", "op", op, "balance", a.CashBalance.String())
	return nil
}

func validatePosting(tradeID int64, c trade.Contract) error {
	if err := validateID(tradeID); err != nil {
		return err
	}
	if c.ID <= 0 {
		return fmt.Errorf("contract should carry an id: %w", fault.ErrInvalidArgument)
	}
	return nil
}
