// Package sequence hands out monotonic ids from named counters persisted in
// a store table.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/metrics"
	"github.com/guyvdb/tradestore/store"
)

// TableName is the table counters are kept in.
const TableName = "counters"

// Counters is the part of a store the generator needs.
type Counters interface {
	Begin() (*store.Txn, error)
	FindTx(tx *store.Txn, key string) (int64, bool, error)
	SaveTx(tx *store.Txn, key string, value int64) error
	Find(key string) (int64, bool, error)
}

// Generator issues ids from one counter. An id is issued only once the
// increment has been committed, so the counter never moves backwards and a
// failed call leaves it unchanged.
type Generator struct {
	mu       sync.Mutex
	counters Counters
	name     string
	retries  uint64
	backoff  time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// minBackoff is the smallest wait between retries.
const minBackoff = time.Millisecond

// WithRetries sets how many times a storage failure is retried before Next
// gives up. Zero disables retrying. A backoff below a millisecond is raised
// to one.
func WithRetries(n uint64, backoff time.Duration) Option {
	return func(g *Generator) {
		g.retries = n
		g.backoff = max(backoff, minBackoff)
	}
}

// New returns a generator for the counter name kept in counters.
func New(counters Counters, name string, opts ...Option) *Generator {
	g := &Generator{
		counters: counters,
		name:     name,
		retries:  3,
		backoff:  10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the counter name.
func (g *Generator) Name() string {
	return g.name
}

// Current returns the last id issued, or 0.
func (g *Generator) Current() (int64, error) {
	v, _, err := g.counters.Find(g.name)
	return v, err
}

// Next increments the counter and returns the new value.
func (g *Generator) Next(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var id int64
	task := func(ctx context.Context) error {
		var err error
		id, err = g.increment()
		if err != nil && errors.Is(err, fault.ErrStorageEngine) {
			slog.Warn("Generator.Next() - retrying increment", "counter", g.name, "err", err)
			return retry.RetryableError(err)
		}
		return err
	}

	b := retry.WithMaxRetries(g.retries, retry.NewFibonacci(g.backoff))
	if err := retry.Do(ctx, b, task); err != nil {
		return 0, fmt.Errorf("counter %s: %w: %w", g.name, fault.ErrIdNotIssued, err)
	}

	metrics.IdsIssued.WithLabelValues(g.name).Inc()
	slog.Debug("Generator.Next() - issued id", "counter", g.name, "id", id)
	return id, nil
}

func (g *Generator) increment() (int64, error) {
	tx, err := g.counters.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	current, _, err := g.counters.FindTx(tx, g.name)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := g.counters.SaveTx(tx, g.name, next); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}
