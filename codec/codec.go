// Package codec converts keys and values to and from the byte forms kept in
// the embedded stores. Values go through a Codec, physical keys through the
// ordered Key encoding.
package codec

import (
	"fmt"
	"strings"

	"github.com/guyvdb/tradestore/fault"
)

// Codec encodes values to a stable byte form and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Default is the codec used when a store is opened without WithCodec.
var Default Codec = JSON

// ByName returns the codec registered under name ("json" or "cbor").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", JSON.Name():
		return JSON, nil
	case CBOR.Name():
		return CBOR, nil
	}
	return nil, fmt.Errorf("unknown codec %q: %w", name, fault.ErrInvalidArgument)
}
