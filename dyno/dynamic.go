// Package dyno gives a schema-less view of a record: its serialized fields
// as a property map, plus any derived properties the caller sets.
package dyno

import (
	"fmt"

	"github.com/guyvdb/tradestore/codec"
)

// Object is a typed bag of properties.
type Object struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// New returns an empty object of typeName.
func New(typeName string) *Object {
	return &Object{
		Type:       typeName,
		Properties: make(map[string]any),
	}
}

// FromValue builds an object from the JSON form of v. Numbers become
// float64, nested records become maps.
func FromValue(typeName string, v any) (*Object, error) {
	data, err := codec.JSON.Marshal(v)
	if err != nil {
		return nil, err
	}
	props := make(map[string]any)
	if err := codec.JSON.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("%s is not an object: %w", typeName, err)
	}
	return &Object{Type: typeName, Properties: props}, nil
}

// SetProperty sets name to value.
func (o *Object) SetProperty(name string, value any) {
	o.Properties[name] = value
}

// GetProperty returns name, or nil.
func (o *Object) GetProperty(name string) any {
	return o.Properties[name]
}

// Map returns the property map itself.
func (o *Object) Map() map[string]any {
	return o.Properties
}
