package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/fault"
)

// FileExt is appended to a table name to form its file name.
const FileExt = ".db"

// DefaultOpenTimeout bounds the wait for the bbolt file lock.
const DefaultOpenTimeout = time.Second

type options struct {
	codec   codec.Codec
	timeout time.Duration
}

// Option configures a Store or an Index.
type Option func(*options)

// WithCodec sets the value codec. Keys always use the ordered key encoding.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithTimeout sets how long Open waits for the file lock held by another process.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func buildOptions(opts []Option) *options {
	o := &options{codec: codec.Default, timeout: DefaultOpenTimeout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// openFile opens (creating if needed) <dir>/<name>.db and makes sure every
// bucket in buckets exists.
func openFile(dir, name string, timeout time.Duration, buckets ...[]byte) (*bbolt.DB, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("table name is empty: %w", fault.ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w: %w", dir, fault.ErrStorageEngine, err)
	}

	path := filepath.Join(dir, name+FileExt)
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open bolt db %s: %w: %w", path, fault.ErrStorageEngine, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to create buckets in %s: %w: %w", path, fault.ErrStorageEngine, err)
	}
	return db, path, nil
}

func engineError(table, op string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", table, op, fault.ErrStorageEngine, err)
}

func cloneBytes(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
