package repository

import (
	"path/filepath"
	"time"

	"github.com/guyvdb/tradestore/codec"
	"github.com/guyvdb/tradestore/store"
	"github.com/guyvdb/tradestore/trade"
)

// Table names, one bbolt file each under Layout.Dir.
const (
	TradeTable     = "trade"
	SymbolIndex    = "SYMBOL_INDEX"
	DateIndex      = "DATE_INDEX"
	AccountTable   = "trading_account"
	TradeIDCounter = "TRADE_ID_COUNTER"
)

// Layout locates a repository on disk.
type Layout struct {
	DataDir   string
	Namespace string
	// Timeout bounds the wait for a file lock held by another process.
	Timeout time.Duration
}

// Dir is the directory holding the repository's tables.
func (l Layout) Dir() string {
	return filepath.Join(l.DataDir, l.Namespace)
}

type options struct {
	strict    bool
	requireID bool
	codec     codec.Codec
	separator string
	calc      *trade.Calculator
}

// Option configures a repository.
type Option func(*options)

// WithStrictUpdate makes saving a record whose id does not exist fail with
// fault.ErrNotFound instead of inserting it.
func WithStrictUpdate(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithRequireID rejects records without an id. Archives use it so records
// keep the id they were given in the live repository.
func WithRequireID() Option {
	return func(o *options) {
		o.requireID = true
	}
}

// WithCodec sets the value codec of every table.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithSeparator sets the index key separator.
func WithSeparator(sep string) Option {
	return func(o *options) {
		o.separator = sep
	}
}

// WithCalculator sets the charges calculator handed to callers.
func WithCalculator(c *trade.Calculator) Option {
	return func(o *options) {
		if c != nil {
			o.calc = c
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		codec:     codec.Default,
		separator: store.DefaultSeparator,
		calc:      trade.DefaultCalculator(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) storeOptions(l Layout) []store.Option {
	opts := []store.Option{store.WithCodec(o.codec)}
	if l.Timeout > 0 {
		opts = append(opts, store.WithTimeout(l.Timeout))
	}
	return opts
}
