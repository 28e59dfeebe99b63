package store

import (
	"errors"
	"log/slog"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/guyvdb/tradestore/fault"
)

// Txn is an explicit write transaction scoped to a single Store or Index.
// Operations given a Txn do not commit; the caller must Commit or Rollback.
// A Txn must not be shared between goroutines. The table lock is not held
// while a Txn is open, so the owning table must not be closed until it ends.
type Txn struct {
	tx   *bbolt.Tx
	name string
	done bool
}

func begin(db *bbolt.DB, name string) (*Txn, error) {
	tx, err := db.Begin(true)
	if err != nil {
		return nil, engineError(name, "begin", err)
	}
	slog.Debug("Txn.begin() - begin transaction", "table", name)
	return &Txn{tx: tx, name: name}, nil
}

// Name returns the table the transaction belongs to.
func (t *Txn) Name() string {
	return t.name
}

// Done reports whether the transaction was committed or rolled back.
func (t *Txn) Done() bool {
	return t.done
}

// Commit finalizes the transaction.
func (t *Txn) Commit() error {
	if t.done {
		return fault.ErrTxClosed
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return engineError(t.name, "commit", err)
	}
	slog.Debug("Txn.Commit() - committed", "table", t.name)
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *Txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, berrors.ErrTxClosed) {
		return engineError(t.name, "rollback", err)
	}
	slog.Debug("Txn.Rollback() - rolled back", "table", t.name)
	return nil
}

func (t *Txn) bucket(db *bbolt.DB, name []byte) (*bbolt.Bucket, error) {
	if t == nil || t.done {
		return nil, fault.ErrTxClosed
	}
	if t.tx.DB() != db {
		return nil, fault.ErrForeignTx
	}
	b := t.tx.Bucket(name)
	if b == nil {
		return nil, fault.ErrBucketNotFound
	}
	return b, nil
}
