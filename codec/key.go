package codec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/guyvdb/tradestore/fault"
)

// TimeLayout is the fixed width UTC layout used for time keys. Unlike
// RFC3339Nano it never trims the fraction, so byte order matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Key encodes v so that the byte order of encoded keys matches the natural
// order of the values. All encodings are printable text.
func Key(v any) ([]byte, error) {
	switch k := v.(type) {
	case string:
		return []byte(k), nil
	case int:
		return encodeInt(int64(k)), nil
	case int8:
		return encodeInt(int64(k)), nil
	case int16:
		return encodeInt(int64(k)), nil
	case int32:
		return encodeInt(int64(k)), nil
	case int64:
		return encodeInt(k), nil
	case uint:
		return encodeUint(uint64(k)), nil
	case uint8:
		return encodeUint(uint64(k)), nil
	case uint16:
		return encodeUint(uint64(k)), nil
	case uint32:
		return encodeUint(uint64(k)), nil
	case uint64:
		return encodeUint(k), nil
	case bool:
		if k {
			return []byte{'1'}, nil
		}
		return []byte{'0'}, nil
	case time.Time:
		return []byte(k.UTC().Format(TimeLayout)), nil
	}
	return JSON.Marshal(v)
}

// KeyOf is the typed form of Key.
func KeyOf[K any](k K) ([]byte, error) {
	return Key(any(k))
}

// DecodeKey reverses KeyOf.
func DecodeKey[K any](data []byte) (K, error) {
	var out K
	var err error

	switch p := any(&out).(type) {
	case *string:
		*p = string(data)
	case *int:
		var i int64
		i, err = decodeInt(data)
		*p = int(i)
	case *int32:
		var i int64
		i, err = decodeInt(data)
		*p = int32(i)
	case *int64:
		*p, err = decodeInt(data)
	case *uint64:
		*p, err = decodeUint(data)
	case *uint32:
		var u uint64
		u, err = decodeUint(data)
		*p = uint32(u)
	case *bool:
		*p = len(data) == 1 && data[0] == '1'
	case *time.Time:
		*p, err = time.Parse(TimeLayout, string(data))
	default:
		err = JSON.Unmarshal(data, &out)
	}

	if err != nil {
		var zero K
		return zero, fmt.Errorf("decode key %q: %w: %w", string(data), fault.ErrSerialization, err)
	}
	return out, nil
}

// Flipping the sign bit makes negative numbers sort before positive ones.
func encodeInt(i int64) []byte {
	return encodeUint(uint64(i) ^ (1 << 63))
}

func decodeInt(data []byte) (int64, error) {
	u, err := decodeUint(data)
	if err != nil {
		return 0, err
	}
	return int64(u ^ (1 << 63)), nil
}

func encodeUint(u uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	out := make([]byte, hex.EncodedLen(len(buf)))
	hex.Encode(out, buf)
	return out
}

func decodeUint(data []byte) (uint64, error) {
	if len(data) != 16 {
		return 0, fmt.Errorf("expected 16 hex digits, got %d bytes", len(data))
	}
	buf := make([]byte, 8)
	if _, err := hex.Decode(buf, data); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}
