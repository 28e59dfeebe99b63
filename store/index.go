package store

import (
	"fmt"

	"github.com/guyvdb/tradestore/fault"
)

// Strategy selects how an Index tells apart several values filed under the
// same index key.
type Strategy int

const (
	// UniqueOrPostfixValue files the first value under the bare index key and
	// every further value under index key + separator + encoded value.
	UniqueOrPostfixValue Strategy = iota
	// PostfixWithCount files every value under index key + separator + the
	// next value of a counter persisted next to the index.
	PostfixWithCount
	// MultipleValues is reserved for a true multi-value representation.
	MultipleValues
)

// DefaultSeparator is the separator used when none is configured.
const DefaultSeparator = "~~~"

func (s Strategy) String() string {
	switch s {
	case UniqueOrPostfixValue:
		return "UniqueOrPostfixValue"
	case PostfixWithCount:
		return "PostfixWithCount"
	case MultipleValues:
		return "MultipleValues"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

func (s Strategy) validate(separator string) error {
	switch s {
	case UniqueOrPostfixValue, PostfixWithCount:
		if separator == "" {
			return fmt.Errorf("%s: %w: %w", s, fault.ErrSeparatorRequired, fault.ErrInvalidArgument)
		}
		return nil
	case MultipleValues:
		return fmt.Errorf("%s strategy: %w", s, fault.ErrNotImplemented)
	}
	return fmt.Errorf("unknown index strategy %d: %w", int(s), fault.ErrInvalidArgument)
}
