package store

import (
	"bytes"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"

	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/fault"
)

const counterKey = "__postfix_counter__"

// Entry is one decoded index entry.
type Entry[K comparable, V comparable] struct {
	Key   K
	Value V
}

// Index maps a non unique index key to the values filed under it, usually
// primary keys of another table. Keys are stored in ordered key form so that
// range scans follow the natural order of K.
//
// Physical keys are either the bare encoded key or encoded key + separator +
// suffix. An encoded key must never contain the separator.
type Index[K comparable, V comparable] struct {
	table
	bucket   []byte
	counters []byte
	strategy Strategy
	sep      []byte
	codec    codec.Codec
}

// OpenIndex opens the index name under dir, creating the file when missing.
func OpenIndex[K comparable, V comparable](dir, name string, strategy Strategy, separator string, opts ...Option) (*Index[K, V], error) {
	if err := strategy.validate(separator); err != nil {
		return nil, fmt.Errorf("index %s: %w", name, err)
	}
	o := buildOptions(opts)

	slog.Debug("store.OpenIndex() - open index", "dir", dir, "name", name, "strategy", strategy.String())

	counters := []byte(name + ".counter")
	db, path, err := openFile(dir, name, o.timeout, []byte(name), counters)
	if err != nil {
		return nil, err
	}

	return &Index[K, V]{
		table:    table{db: db, name: name, path: path},
		bucket:   []byte(name),
		counters: counters,
		strategy: strategy,
		sep:      []byte(separator),
		codec:    o.codec,
	}, nil
}

// Name returns the index name.
func (ix *Index[K, V]) Name() string {
	return ix.name
}

// Path returns the file backing the index.
func (ix *Index[K, V]) Path() string {
	return ix.path
}

// Strategy returns the configured duplicate strategy.
func (ix *Index[K, V]) Strategy() Strategy {
	return ix.strategy
}

// Begin opens an explicit write transaction on the index.
func (ix *Index[K, V]) Begin() (*Txn, error) {
	return ix.begin()
}

// Index files value under key and commits. Filing a pair that is already
// present is a no-op.
func (ix *Index[K, V]) Index(key K, value V) error {
	return ix.update("index", func(tx *bbolt.Tx) error {
		return ix.put(tx, key, value)
	})
}

// IndexTx is Index inside tx.
func (ix *Index[K, V]) IndexTx(tx *Txn, key K, value V) error {
	if _, err := ix.txBucket(tx, ix.bucket); err != nil {
		return err
	}
	return ix.wrap("index", ix.put(tx.tx, key, value))
}

// Find returns every value filed under key in physical key order.
func (ix *Index[K, V]) Find(key K) ([]V, error) {
	base, err := ix.baseKey(key)
	if err != nil {
		return nil, err
	}

	results := make([]V, 0)
	err = ix.view("find", func(tx *bbolt.Tx) error {
		b, err := bucketOf(tx, ix.bucket)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.Seek(base); k != nil && bytes.HasPrefix(k, base); k, v = c.Next() {
			rest := k[len(base):]
			if len(rest) > 0 && !bytes.HasPrefix(rest, ix.sep) {
				// a longer key that merely shares the prefix, e.g. AAPLX for AAPL
				continue
			}
			value, err := ix.decode(k, rest, v)
			if err != nil {
				return err
			}
			results = append(results, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindRange returns the values filed under keys k with from <= k <= to, in
// key order.
func (ix *Index[K, V]) FindRange(from, to K) ([]V, error) {
	lo, err := ix.baseKey(from)
	if err != nil {
		return nil, err
	}
	hi, err := ix.baseKey(to)
	if err != nil {
		return nil, err
	}

	results := make([]V, 0)
	if bytes.Compare(lo, hi) > 0 {
		return results, nil
	}

	err = ix.view("find range", func(tx *bbolt.Tx) error {
		b, err := bucketOf(tx, ix.bucket)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.Seek(lo); k != nil; k, v = c.Next() {
			base, rest := ix.split(k)
			if bytes.Compare(base, hi) > 0 {
				// keys extending hi, e.g. AAPLX, sort between hi and hi+separator
				if bytes.HasPrefix(k, hi) {
					continue
				}
				break
			}
			if bytes.Compare(base, lo) < 0 {
				// composites of a shorter key, e.g. AAPL~~~1, sort after lo=AAPLX
				continue
			}
			value, err := ix.decode(k, rest, v)
			if err != nil {
				return err
			}
			results = append(results, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Entries returns every entry of the index in key order.
func (ix *Index[K, V]) Entries() ([]Entry[K, V], error) {
	entries := make([]Entry[K, V], 0)
	err := ix.view("entries", func(tx *bbolt.Tx) error {
		b, err := bucketOf(tx, ix.bucket)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			base, rest := ix.split(k)
			key, err := codec.DecodeKey[K](base)
			if err != nil {
				return fmt.Errorf("index %s: %w", ix.name, err)
			}
			value, err := ix.decode(k, rest, v)
			if err != nil {
				return err
			}
			entries = append(entries, Entry[K, V]{Key: key, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes value from under key and commits. It reports whether an
// entry was removed.
func (ix *Index[K, V]) Delete(key K, value V) (bool, error) {
	var removed bool
	err := ix.update("delete", func(tx *bbolt.Tx) error {
		var err error
		removed, err = ix.remove(tx, key, value)
		return err
	})
	return removed, err
}

// DeleteTx is Delete inside tx.
func (ix *Index[K, V]) DeleteTx(tx *Txn, key K, value V) (bool, error) {
	if _, err := ix.txBucket(tx, ix.bucket); err != nil {
		return false, err
	}
	removed, err := ix.remove(tx.tx, key, value)
	return removed, ix.wrap("delete", err)
}

// Clear removes every entry. The postfix counter is kept so suffixes are
// never reused.
func (ix *Index[K, V]) Clear() error {
	slog.Info("clearing index", "index", ix.name)
	return ix.update("clear", func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(ix.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(ix.bucket)
		return err
	})
}

// Close releases the file. Closing twice is a no-op. Any Txn begun on the
// file must be committed or rolled back first.
func (ix *Index[K, V]) Close() error {
	return ix.close()
}

// Drop closes the index and deletes its file.
func (ix *Index[K, V]) Drop() error {
	return ix.drop()
}

func (ix *Index[K, V]) put(tx *bbolt.Tx, key K, value V) error {
	b, err := bucketOf(tx, ix.bucket)
	if err != nil {
		return err
	}
	base, err := ix.baseKey(key)
	if err != nil {
		return err
	}
	payload, err := ix.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("index %s key %s: %w", ix.name, string(base), err)
	}

	matches, err := ix.matching(b, base, payload)
	if err != nil {
		return err
	}
	if len(matches) > 0 {
		return nil
	}

	switch ix.strategy {
	case UniqueOrPostfixValue:
		if len(b.Get(base)) == 0 {
			return b.Put(base, payload)
		}
		return b.Put(ix.composite(base, payload), payload)

	case PostfixWithCount:
		n, err := ix.nextCount(tx)
		if err != nil {
			return err
		}
		suffix, _ := codec.KeyOf(n)
		return b.Put(ix.composite(base, suffix), payload)
	}
	return ix.strategy.validate(string(ix.sep))
}

func (ix *Index[K, V]) remove(tx *bbolt.Tx, key K, value V) (bool, error) {
	b, err := bucketOf(tx, ix.bucket)
	if err != nil {
		return false, err
	}
	base, err := ix.baseKey(key)
	if err != nil {
		return false, err
	}
	payload, err := ix.codec.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("index %s key %s: %w", ix.name, string(base), err)
	}

	matches, err := ix.matching(b, base, payload)
	if err != nil {
		return false, err
	}
	// cursor must not be used while deleting, so the keys are collected first
	for _, k := range matches {
		if err := b.Delete(k); err != nil {
			return false, err
		}
	}
	if len(matches) > 0 {
		slog.Debug("Index.remove() - removed entries", "index", ix.name, "key", string(base), "count", len(matches))
	}
	return len(matches) > 0, nil
}

// matching returns the physical keys under base whose payload equals payload.
func (ix *Index[K, V]) matching(b *bbolt.Bucket, base, payload []byte) ([][]byte, error) {
	matches := make([][]byte, 0)
	c := b.Cursor()
	for k, v := c.Seek(base); k != nil && bytes.HasPrefix(k, base); k, v = c.Next() {
		rest := k[len(base):]
		if len(rest) > 0 && !bytes.HasPrefix(rest, ix.sep) {
			continue
		}
		if bytes.Equal(v, payload) {
			matches = append(matches, cloneBytes(k))
		}
	}
	return matches, nil
}

func (ix *Index[K, V]) nextCount(tx *bbolt.Tx) (uint64, error) {
	cb, err := bucketOf(tx, ix.counters)
	if err != nil {
		return 0, err
	}
	var n uint64
	if raw := cb.Get([]byte(counterKey)); len(raw) > 0 {
		n, err = codec.DecodeKey[uint64](raw)
		if err != nil {
			return 0, fmt.Errorf("index %s counter: %w", ix.name, err)
		}
	}
	n++
	next, _ := codec.KeyOf(n)
	if err := cb.Put([]byte(counterKey), next); err != nil {
		return 0, err
	}
	return n, nil
}

// decode extracts the value of one physical entry. Under UniqueOrPostfixValue
// a composite entry carries its value in the key remainder.
func (ix *Index[K, V]) decode(k, rest, payload []byte) (V, error) {
	var out V
	raw := payload
	if ix.strategy == UniqueOrPostfixValue && len(rest) > 0 {
		raw = rest[len(ix.sep):]
	}
	if err := ix.codec.Unmarshal(cloneBytes(raw), &out); err != nil {
		return out, fmt.Errorf("index %s entry %s: %w", ix.name, string(k), err)
	}
	return out, nil
}

// split separates a physical key into its encoded index key and the
// separator-led remainder, which is empty for a bare key.
func (ix *Index[K, V]) split(k []byte) ([]byte, []byte) {
	i := bytes.Index(k, ix.sep)
	if i < 0 {
		return k, nil
	}
	return k[:i], k[i:]
}

func (ix *Index[K, V]) composite(base, suffix []byte) []byte {
	out := make([]byte, 0, len(base)+len(ix.sep)+len(suffix))
	out = append(out, base...)
	out = append(out, ix.sep...)
	return append(out, suffix...)
}

func (ix *Index[K, V]) baseKey(key K) ([]byte, error) {
	k, err := codec.KeyOf(key)
	if err != nil {
		return nil, err
	}
	if len(k) == 0 {
		return nil, fmt.Errorf("index %s: key must not be empty: %w", ix.name, fault.ErrInvalidArgument)
	}
	// the first separator of a physical key must start right after the key
	if bytes.Index(ix.composite(k, nil), ix.sep) != len(k) {
		return nil, fmt.Errorf("index %s key %q: %w: %w", ix.name, string(k), fault.ErrSeparatorInKey, fault.ErrInvalidArgument)
	}
	return k, nil
}
