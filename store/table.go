package store

import (
	"errors"
	"log/slog"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/guyvdb/tradestore/fault"
)

// table owns one bbolt file. The read lock is held for the duration of every
// operation, so Close waits for in-flight calls.
type table struct {
	mu   sync.RWMutex
	db   *bbolt.DB
	name string
	path string
}

func (t *table) begin() (*Txn, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.db == nil {
		return nil, fault.ErrClosed
	}
	return begin(t.db, t.name)
}

// txBucket resolves name inside tx, which must have been begun on this table.
func (t *table) txBucket(tx *Txn, name []byte) (*bbolt.Bucket, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.db == nil {
		return nil, fault.ErrClosed
	}
	return tx.bucket(t.db, name)
}

func (t *table) update(op string, fn func(tx *bbolt.Tx) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.db == nil {
		return fault.ErrClosed
	}
	return t.wrap(op, t.db.Update(fn))
}

func (t *table) view(op string, fn func(tx *bbolt.Tx) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.db == nil {
		return fault.ErrClosed
	}
	return t.wrap(op, t.db.View(fn))
}

// wrap leaves already classified errors alone and tags the rest as engine failures.
func (t *table) wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fault.ErrSerialization),
		errors.Is(err, fault.ErrInvalidArgument),
		errors.Is(err, fault.ErrStorageEngine):
		return err
	}
	return engineError(t.name, op, err)
}

func (t *table) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	slog.Debug("table.close() - close db", "table", t.name)
	err := t.db.Close()
	t.db = nil
	if err != nil {
		return engineError(t.name, "close", err)
	}
	return nil
}

func (t *table) drop() error {
	if err := t.close(); err != nil {
		return err
	}
	return dropFile(t.name, t.path)
}

func bucketOf(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fault.ErrBucketNotFound
	}
	return b, nil
}
