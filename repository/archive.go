package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guyvdb/tradestore/fault"
)

// OpenArchive opens the archive repository. Archived trades keep their live
// id, so the archive never issues ids of its own.
func OpenArchive(layout Layout, opts ...Option) (*TradeRepository, error) {
	return OpenTrades(layout, append(opts, WithRequireID())...)
}

// Archive moves closed trade id from live to archive. The archive copy is
// written first, so a failure part way leaves the trade in both
// repositories rather than in neither.
func Archive(ctx context.Context, live, archive *TradeRepository, id int64) error {
	t, err := live.Get(id)
	if err != nil {
		return err
	}
	if !t.IsClosed() {
		return fmt.Errorf("trade %d is open: %w", id, fault.ErrInvalidArgument)
	}

	if _, err := archive.SaveOrUpdate(ctx, t); err != nil {
		return fmt.Errorf("archive trade %d: %w", id, err)
	}
	if _, err := live.Delete(id); err != nil {
		return fmt.Errorf("remove archived trade %d: %w", id, err)
	}
	slog.Info("archived trade", "id", id, "symbol", t.Symbol)
	return nil
}
