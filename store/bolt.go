package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.etcd.io/bbolt"

	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/fault"
	"github.com/guyvdb/tradestore/metrics"
)

// Store is a single table of K -> V kept in its own bbolt file.
//
// Every method without a Txn argument runs in its own bbolt transaction and
// commits before returning. bbolt permits one writer per file, so a goroutine
// holding a Txn from Begin must not call the auto-committing writers of the
// same Store until that Txn is finished.
type Store[K comparable, V any] struct {
	table
	bucket []byte
	codec  codec.Codec
}

// Open opens the table name under dir, creating the file when missing.
func Open[K comparable, V any](dir, name string, opts ...Option) (*Store[K, V], error) {
	o := buildOptions(opts)

	slog.Debug("store.Open() - open table", "dir", dir, "name", name, "codec", o.codec.Name())

	db, path, err := openFile(dir, name, o.timeout, []byte(name))
	if err != nil {
		return nil, err
	}

	return &Store[K, V]{
		table:  table{db: db, name: name, path: path},
		bucket: []byte(name),
		codec:  o.codec,
	}, nil
}

// Name returns the table name.
func (s *Store[K, V]) Name() string {
	return s.name
}

// Path returns the file backing the table.
func (s *Store[K, V]) Path() string {
	return s.path
}

// Begin opens an explicit write transaction on this table.
func (s *Store[K, V]) Begin() (*Txn, error) {
	return s.begin()
}

// Save writes value under key and commits.
func (s *Store[K, V]) Save(key K, value V) error {
	k, v, err := s.encode(key, value)
	if err != nil {
		return err
	}
	slog.Debug("Store.Save() - save", "table", s.name, "key", string(k))
	return s.update("save", func(b *bbolt.Bucket) error {
		return b.Put(k, v)
	})
}

// SaveTx writes value under key inside tx without committing.
func (s *Store[K, V]) SaveTx(tx *Txn, key K, value V) error {
	b, err := s.txBucket(tx, s.bucket)
	if err != nil {
		return err
	}
	k, v, err := s.encode(key, value)
	if err != nil {
		return err
	}
	slog.Debug("Store.SaveTx() - save", "table", s.name, "key", string(k))
	if err := b.Put(k, v); err != nil {
		return engineError(s.name, "save", err)
	}
	return nil
}

// Tombstone keeps key but marks it as holding no value. Readers treat a
// tombstoned key as absent.
func (s *Store[K, V]) Tombstone(key K) error {
	k, err := s.encodeKey(key)
	if err != nil {
		return err
	}
	return s.update("tombstone", func(b *bbolt.Bucket) error {
		return b.Put(k, []byte{})
	})
}

// TombstoneTx is Tombstone inside tx.
func (s *Store[K, V]) TombstoneTx(tx *Txn, key K) error {
	b, err := s.txBucket(tx, s.bucket)
	if err != nil {
		return err
	}
	k, err := s.encodeKey(key)
	if err != nil {
		return err
	}
	if err := b.Put(k, []byte{}); err != nil {
		return engineError(s.name, "tombstone", err)
	}
	return nil
}

// Get returns the value stored under key, or fault.ErrNotFound.
func (s *Store[K, V]) Get(key K) (V, error) {
	v, found, err := s.Find(key)
	if err != nil {
		return v, err
	}
	if !found {
		return v, fmt.Errorf("%s key %v: %w", s.name, key, fault.ErrNotFound)
	}
	return v, nil
}

// Find returns the value stored under key and whether it was present.
func (s *Store[K, V]) Find(key K) (V, bool, error) {
	var out V
	k, err := s.encodeKey(key)
	if err != nil {
		return out, false, err
	}

	var raw []byte
	err = s.view("find", func(b *bbolt.Bucket) error {
		if v := b.Get(k); len(v) > 0 {
			raw = cloneBytes(v)
		}
		return nil
	})
	if err != nil || raw == nil {
		return out, false, err
	}

	if err := s.codec.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("%s key %s: %w", s.name, string(k), err)
	}
	return out, true, nil
}

// FindTx reads key inside tx, observing the transaction's own writes.
func (s *Store[K, V]) FindTx(tx *Txn, key K) (V, bool, error) {
	var out V
	b, err := s.txBucket(tx, s.bucket)
	if err != nil {
		return out, false, err
	}
	k, err := s.encodeKey(key)
	if err != nil {
		return out, false, err
	}
	v := b.Get(k)
	if len(v) == 0 {
		return out, false, nil
	}
	if err := s.codec.Unmarshal(cloneBytes(v), &out); err != nil {
		return out, false, fmt.Errorf("%s key %s: %w", s.name, string(k), err)
	}
	return out, true, nil
}

// FindAll walks the table in key order and returns the values accepted by
// filter, as rewritten by it. A nil filter accepts everything. Entries that
// fail to decode are logged and skipped.
func (s *Store[K, V]) FindAll(filter Filter[V]) ([]V, error) {
	results := make([]V, 0)

	err := s.view("find all", func(b *bbolt.Bucket) error {
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) == 0 {
				continue
			}

			var item V
			if err := s.codec.Unmarshal(cloneBytes(v), &item); err != nil {
				slog.Warn("Store.FindAll() - skipping unreadable entry", "table", s.name, "key", string(k), "err", err)
				metrics.CorruptEntries.WithLabelValues(s.name).Inc()
				continue
			}

			if filter == nil {
				results = append(results, item)
				continue
			}
			if accepted, ok := filter(item); ok {
				results = append(results, accepted)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Keys returns every live key in key order.
func (s *Store[K, V]) Keys() ([]K, error) {
	keys := make([]K, 0)
	err := s.view("keys", func(b *bbolt.Bucket) error {
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) == 0 {
				continue
			}
			key, err := codec.DecodeKey[K](k)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes key and commits. It reports whether a live value was removed.
func (s *Store[K, V]) Delete(key K) (bool, error) {
	k, err := s.encodeKey(key)
	if err != nil {
		return false, err
	}
	var existed bool
	err = s.update("delete", func(b *bbolt.Bucket) error {
		existed = len(b.Get(k)) > 0
		return b.Delete(k)
	})
	return existed, err
}

// DeleteTx removes key inside tx.
func (s *Store[K, V]) DeleteTx(tx *Txn, key K) (bool, error) {
	b, err := s.txBucket(tx, s.bucket)
	if err != nil {
		return false, err
	}
	k, err := s.encodeKey(key)
	if err != nil {
		return false, err
	}
	existed := len(b.Get(k)) > 0
	if err := b.Delete(k); err != nil {
		return false, engineError(s.name, "delete", err)
	}
	slog.Debug("Store.DeleteTx() - delete", "table", s.name, "key", string(k), "existed", existed)
	return existed, nil
}

// Close releases the file. Closing twice is a no-op. Any Txn begun on the
// file must be committed or rolled back first.
func (s *Store[K, V]) Close() error {
	return s.close()
}

// Drop closes the table and deletes its file.
func (s *Store[K, V]) Drop() error {
	return s.drop()
}

func (s *Store[K, V]) encodeKey(key K) ([]byte, error) {
	k, err := codec.KeyOf(key)
	if err != nil {
		return nil, err
	}
	if len(k) == 0 {
		return nil, fmt.Errorf("%s: key must not be empty: %w", s.name, fault.ErrInvalidArgument)
	}
	return k, nil
}

func (s *Store[K, V]) encode(key K, value V) ([]byte, []byte, error) {
	k, err := s.encodeKey(key)
	if err != nil {
		return nil, nil, err
	}
	v, err := s.codec.Marshal(value)
	if err != nil {
		return nil, nil, fmt.Errorf("%s key %s: %w", s.name, string(k), err)
	}
	return k, v, nil
}

func (s *Store[K, V]) update(op string, fn func(b *bbolt.Bucket) error) error {
	return s.table.update(op, func(tx *bbolt.Tx) error {
		b, err := bucketOf(tx, s.bucket)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

func (s *Store[K, V]) view(op string, fn func(b *bbolt.Bucket) error) error {
	return s.table.view(op, func(tx *bbolt.Tx) error {
		b, err := bucketOf(tx, s.bucket)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

func dropFile(name, path string) error {
	slog.Info("dropping table", "table", name, "path", path)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return engineError(name, "drop", err)
	}
	return nil
}
