package repository

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/trade"
)

// Orphan describes one disagreement between an index and the trade table.
type Orphan struct {
	Index  string `json:"index"`
	Key    string `json:"key"`
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

func (o Orphan) String() string {
	return fmt.Sprintf("%s[%s] -> %d: %s", o.Index, o.Key, o.ID, o.Reason)
}

// Orphan reasons.
const (
	ReasonMissingTrade = "trade does not exist"
	ReasonStaleKey     = "trade no longer has this key"
	ReasonMissingEntry = "trade is not indexed"
)

// CheckIndexes compares both indexes with the trade table and reports every
// entry pointing at a missing or changed trade, and every trade lacking an
// entry. It changes nothing.
func (r *TradeRepository) CheckIndexes() ([]Orphan, error) {
	all, err := r.trades.FindAll(nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*trade.Trade, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	orphans := make([]Orphan, 0)
	symbolSeen := make(map[int64]bool)
	dateSeen := make(map[int64]bool)

	symbols, err := r.symbols.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range symbols {
		t, ok := byID[e.Value]
		switch {
		case !ok:
			orphans = append(orphans, Orphan{SymbolIndex, e.Key, e.Value, ReasonMissingTrade})
		case t.Symbol != e.Key:
			orphans = append(orphans, Orphan{SymbolIndex, e.Key, e.Value, ReasonStaleKey})
		default:
			symbolSeen[e.Value] = true
		}
	}

	dates, err := r.dates.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range dates {
		key := e.Key.Format(codec.TimeLayout)
		t, ok := byID[e.Value]
		if !ok {
			orphans = append(orphans, Orphan{DateIndex, key, e.Value, ReasonMissingTrade})
			continue
		}
		closed, isClosed := t.ClosureDate()
		if !isClosed || !closed.Equal(e.Key) {
			orphans = append(orphans, Orphan{DateIndex, key, e.Value, ReasonStaleKey})
			continue
		}
		dateSeen[e.Value] = true
	}

	for _, t := range all {
		if !symbolSeen[t.ID] {
			orphans = append(orphans, Orphan{SymbolIndex, t.Symbol, t.ID, ReasonMissingEntry})
		}
		if closed, ok := t.ClosureDate(); ok && !dateSeen[t.ID] {
			orphans = append(orphans, Orphan{DateIndex, closed.Format(codec.TimeLayout), t.ID, ReasonMissingEntry})
		}
	}

	if len(orphans) > 0 {
		slog.Warn("TradeRepository.CheckIndexes() - indexes disagree with trades", "count", len(orphans))
	}
	return orphans, nil
}

// RebuildIndexes clears both indexes and refills them from the trade table.
// It is an administrative repair, not atomic with concurrent writers.
func (r *TradeRepository) RebuildIndexes() error {
	start := time.Now()
	all, err := r.trades.FindAll(nil)
	if err != nil {
		return err
	}

	if err := r.symbols.Clear(); err != nil {
		return err
	}
	if err := r.dates.Clear(); err != nil {
		return err
	}

	stx, err := r.symbols.Begin()
	if err != nil {
		return err
	}
	defer stx.Rollback()
	dtx, err := r.dates.Begin()
	if err != nil {
		return err
	}
	defer dtx.Rollback()

	for _, t := range all {
		if t.Symbol != "" {
			if err := r.symbols.IndexTx(stx, t.Symbol, t.ID); err != nil {
				return err
			}
		}
		if closed, ok := t.ClosureDate(); ok {
			if err := r.dates.IndexTx(dtx, closed, t.ID); err != nil {
				return err
			}
		}
	}
	if err := stx.Commit(); err != nil {
		return err
	}
	if err := dtx.Commit(); err != nil {
		return err
	}
	slog.Info("rebuilt trade indexes", "trades", len(all), "elapsed", time.Since(start))
	return nil
}
