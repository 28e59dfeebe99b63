package codec

import (
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/guyvdb/tradestore/fault"
)

// JSON is the default codec.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := gojson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json marshal %T: %w: %w", v, fault.ErrSerialization, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := gojson.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json unmarshal %T: %w: %w", v, fault.ErrSerialization, err)
	}
	return nil
}
