// Package repository keeps trade records and their secondary indexes
// consistent across the bbolt files that hold them.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/metrics"
	"github.com/guyvdb/tradestore/sequence"
	"github.com/guyvdb/tradestore/store"
	"github.com/guyvdb/tradestore/trade"
	"github.com/guyvdb/tradestore/twophase"
)

// index is the part of a store.Index the repository uses.
type index[K comparable] interface {
	Name() string
	Begin() (*store.Txn, error)
	IndexTx(tx *store.Txn, key K, id int64) error
	DeleteTx(tx *store.Txn, key K, id int64) (bool, error)
	Find(key K) ([]int64, error)
	FindRange(from, to K) ([]int64, error)
	Entries() ([]store.Entry[K, int64], error)
	Clear() error
	Close() error
	Drop() error
}

// TradeRepository stores trades keyed by id with two secondary indexes:
// symbol -> id for every trade and closure date -> id for closed trades.
//
// Writes open one transaction per participant, always in the order trade,
// symbol index, date index, and commit them together through a
// twophase.Group.
type TradeRepository struct {
	layout   Layout
	opts     *options
	trades   *store.Store[int64, trade.Trade]
	counters *store.Store[string, int64]
	ids      *sequence.Generator
	symbols  index[string]
	dates    index[time.Time]
}

// OpenTrades opens or creates the trade repository under layout.Dir.
func OpenTrades(layout Layout, opts ...Option) (*TradeRepository, error) {
	o := buildOptions(opts)
	dir := layout.Dir()
	sopts := o.storeOptions(layout)

	slog.Info("opening trade repository", "dir", dir, "codec", o.codec.Name(), "strict", o.strict)

	r := &TradeRepository{layout: layout, opts: o}
	var err error
	if r.trades, err = store.Open[int64, trade.Trade](dir, TradeTable, sopts...); err != nil {
		return nil, err
	}
	if r.counters, err = store.Open[string, int64](dir, sequence.TableName, sopts...); err != nil {
		r.Close()
		return nil, err
	}
	r.ids = sequence.New(r.counters, TradeIDCounter)

	symbols, err := store.OpenIndex[string, int64](dir, SymbolIndex, store.UniqueOrPostfixValue, o.separator, sopts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.symbols = symbols

	dates, err := store.OpenIndex[time.Time, int64](dir, DateIndex, store.UniqueOrPostfixValue, o.separator, sopts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.dates = dates
	return r, nil
}

// Calculator returns the charges calculator configured for this repository.
func (r *TradeRepository) Calculator() *trade.Calculator {
	return r.opts.calc
}

// Get returns trade id or fault.ErrNotFound.
func (r *TradeRepository) Get(id int64) (*trade.Trade, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	t, err := r.trades.Get(id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Find returns trade id and whether it exists.
func (r *TradeRepository) Find(id int64) (*trade.Trade, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}
	t, found, err := r.trades.Find(id)
	if err != nil || !found {
		return nil, false, err
	}
	return &t, true, nil
}

// FindOpen returns every trade without a closure date.
func (r *TradeRepository) FindOpen() ([]*trade.Trade, error) {
	return r.Where(func(t *trade.Trade) bool { return !t.IsClosed() })
}

// FindClosed returns every closed trade.
func (r *TradeRepository) FindClosed() ([]*trade.Trade, error) {
	return r.Where(func(t *trade.Trade) bool { return t.IsClosed() })
}

// FindClosedBetween returns the trades closed on a day in [from, to], in
// closure date order. Only the calendar day of from and to is used.
func (r *TradeRepository) FindClosedBetween(from, to time.Time) ([]*trade.Trade, error) {
	start := time.Now()
	defer metrics.Observe("find_closed_between", start)

	from, to = trade.Day(from), trade.Day(to)
	ids, err := r.dates.FindRange(from, to)
	if err != nil {
		return nil, err
	}
	return r.load(DateIndex, ids, func(t *trade.Trade) bool {
		closed, ok := t.ClosureDate()
		return ok && !closed.Before(from) && !closed.After(to)
	})
}

// FindBySymbol returns every trade, open or closed, in symbol.
func (r *TradeRepository) FindBySymbol(symbol string) ([]*trade.Trade, error) {
	symbol, err := validateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	ids, err := r.symbols.Find(symbol)
	if err != nil {
		return nil, err
	}
	return r.load(SymbolIndex, ids, func(t *trade.Trade) bool { return t.Symbol == symbol })
}

// FindOpenBySymbol returns the open trade in symbol. More than one open
// trade in a symbol is reported as fault.ErrAmbiguous.
func (r *TradeRepository) FindOpenBySymbol(symbol string) (*trade.Trade, bool, error) {
	all, err := r.FindBySymbol(symbol)
	if err != nil {
		return nil, false, err
	}
	var open *trade.Trade
	for _, t := range all {
		if t.IsClosed() {
			continue
		}
		if open != nil {
			return nil, false, fmt.Errorf("open trades %d and %d in %s: %w", open.ID, t.ID, symbol, fault.ErrAmbiguous)
		}
		open = t
	}
	return open, open != nil, nil
}

// Where scans every trade and returns those accepted by pred.
func (r *TradeRepository) Where(pred func(*trade.Trade) bool) ([]*trade.Trade, error) {
	start := time.Now()
	defer metrics.Observe("where", start)

	found, err := r.trades.FindAll(store.Where(func(t trade.Trade) bool { return pred(&t) }))
	if err != nil {
		return nil, err
	}
	out := make([]*trade.Trade, len(found))
	for i := range found {
		out[i] = &found[i]
	}
	return out, nil
}

// SaveOrUpdate stores t and its index entries atomically and returns its id.
// A trade without an id is given the next one; a trade with an id replaces
// the stored one, and stale index entries are removed.
//
// On failure nothing is written, an id assigned by this call is reset to 0,
// and the error wraps fault.ErrCoordination unless the trade was rejected
// before any participant was opened.
func (r *TradeRepository) SaveOrUpdate(ctx context.Context, t *trade.Trade) (int64, error) {
	start := time.Now()
	defer metrics.Observe("save", start)

	if t == nil {
		return 0, fmt.Errorf("trade is nil: %w", fault.ErrInvalidArgument)
	}
	symbol, err := validateSymbol(t.Symbol)
	if err != nil {
		return 0, err
	}
	t.Symbol = symbol
	t.Normalize()

	assigned := false
	if t.ID <= 0 {
		if r.opts.requireID {
			return 0, fmt.Errorf("trade has no id: %w", fault.ErrInvalidArgument)
		}
		id, err := r.ids.Next(ctx)
		if err != nil {
			return 0, err
		}
		t.ID = id
		assigned = true
		slog.Debug("TradeRepository.SaveOrUpdate() - assigned id", "id", id, "symbol", t.Symbol)
	}

	if err := r.save(t, assigned); err != nil {
		if assigned {
			t.ID = 0
		}
		return 0, err
	}
	return t.ID, nil
}

func (r *TradeRepository) save(t *trade.Trade, assigned bool) error {
	g := twophase.New("save")
	defer g.Rollback()

	ptx, err := twophase.Join(g, r.trades.Begin)
	if err != nil {
		return err
	}
	old, existed, err := r.trades.FindTx(ptx, t.ID)
	if err != nil {
		return coordinationError("save", t.ID, err)
	}
	if existed && assigned {
		// an explicit-id insert got ahead of the counter
		slog.Error("TradeRepository.save() - generated id already in use", "id", t.ID)
		return coordinationError("save", t.ID, fault.ErrInvalidId)
	}
	if !existed && !assigned {
		if r.opts.strict {
			return fmt.Errorf("trade %d: %w", t.ID, fault.ErrNotFound)
		}
		if !r.opts.requireID {
			slog.Warn("TradeRepository.save() - trade not found, inserting", "id", t.ID, "symbol", t.Symbol)
		}
	}

	stx, err := twophase.Join(g, r.symbols.Begin)
	if err != nil {
		return err
	}

	closure, closed := t.ClosureDate()
	var oldClosure time.Time
	oldClosed := false
	if existed {
		oldClosure, oldClosed = old.ClosureDate()
	}
	var dtx *store.Txn
	if closed || oldClosed {
		if dtx, err = twophase.Join(g, r.dates.Begin); err != nil {
			return err
		}
	}

	if err := r.trades.SaveTx(ptx, t.ID, *t); err != nil {
		return coordinationError("save", t.ID, err)
	}
	if existed && old.Symbol != "" && old.Symbol != t.Symbol {
		if _, err := r.symbols.DeleteTx(stx, old.Symbol, t.ID); err != nil {
			return coordinationError("save", t.ID, err)
		}
	}
	if err := r.symbols.IndexTx(stx, t.Symbol, t.ID); err != nil {
		return coordinationError("save", t.ID, err)
	}
	if oldClosed && (!closed || !oldClosure.Equal(closure)) {
		if _, err := r.dates.DeleteTx(dtx, oldClosure, t.ID); err != nil {
			return coordinationError("save", t.ID, err)
		}
	}
	if closed {
		if err := r.dates.IndexTx(dtx, closure, t.ID); err != nil {
			return coordinationError("save", t.ID, err)
		}
	}

	return g.Commit()
}

// Delete removes trade id and its index entries atomically. It reports
// whether the trade existed.
func (r *TradeRepository) Delete(id int64) (bool, error) {
	start := time.Now()
	defer metrics.Observe("delete", start)

	if err := validateID(id); err != nil {
		return false, err
	}

	g := twophase.New("delete")
	defer g.Rollback()

	ptx, err := twophase.Join(g, r.trades.Begin)
	if err != nil {
		return false, err
	}
	old, existed, err := r.trades.FindTx(ptx, id)
	if err != nil {
		return false, coordinationError("delete", id, err)
	}
	if !existed {
		return false, nil
	}

	stx, err := twophase.Join(g, r.symbols.Begin)
	if err != nil {
		return false, err
	}
	closure, closed := old.ClosureDate()
	var dtx *store.Txn
	if closed {
		if dtx, err = twophase.Join(g, r.dates.Begin); err != nil {
			return false, err
		}
	}

	if _, err := r.trades.DeleteTx(ptx, id); err != nil {
		return false, coordinationError("delete", id, err)
	}
	if old.Symbol != "" {
		if _, err := r.symbols.DeleteTx(stx, old.Symbol, id); err != nil {
			return false, coordinationError("delete", id, err)
		}
	}
	if closed {
		if _, err := r.dates.DeleteTx(dtx, closure, id); err != nil {
			return false, coordinationError("delete", id, err)
		}
	}

	if err := g.Commit(); err != nil {
		return false, err
	}
	slog.Debug("TradeRepository.Delete() - deleted", "id", id, "symbol", old.Symbol)
	return true, nil
}

// Close closes every table.
func (r *TradeRepository) Close() error {
	var errs []error
	if r.trades != nil {
		errs = append(errs, r.trades.Close())
	}
	if r.counters != nil {
		errs = append(errs, r.counters.Close())
	}
	if r.symbols != nil {
		errs = append(errs, r.symbols.Close())
	}
	if r.dates != nil {
		errs = append(errs, r.dates.Close())
	}
	return errors.Join(errs...)
}

// Drop closes every table and deletes its file.
func (r *TradeRepository) Drop() error {
	slog.Info("dropping trade repository", "dir", r.layout.Dir())
	return errors.Join(
		r.trades.Drop(),
		r.counters.Drop(),
		r.symbols.Drop(),
		r.dates.Drop(),
	)
}

// load resolves ids found in index name to trades, keeping those accepted
// by valid. Ids whose trade is missing or no longer matches are logged.
func (r *TradeRepository) load(name string, ids []int64, valid func(*trade.Trade) bool) ([]*trade.Trade, error) {
	out := make([]*trade.Trade, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		t, found, err := r.trades.Find(id)
		if err != nil {
			return nil, err
		}
		if !found || !valid(&t) {
			slog.Warn("TradeRepository.load() - index entry does not match a trade", "index", name, "id", id, "found", found)
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

func coordinationError(op string, id int64, err error) error {
	if errors.Is(err, fault.ErrCoordination) {
		return err
	}
	return fmt.Errorf("%s trade %d: %w: %w", op, id, fault.ErrCoordination, err)
}

func validateID(id int64) error {
	if err := store.ValidateId(id); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrInvalidArgument, err)
	}
	return nil
}

func validateSymbol(symbol string) (string, error) {
	s := strings.TrimSpace(symbol)
	if s == "" {
		return "", fmt.Errorf("symbol is required: %w", fault.ErrInvalidArgument)
	}
	return s, nil
}
