package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guyvdb/tradestore/fault"
)

// ValidateId rejects ids that cannot be primary keys.
func ValidateId(id int64) error {
	if id < 1 {
		return fmt.Errorf("%w: %d", fault.ErrInvalidId, id)
	}
	return nil
}

// IdFromString parses a base 10 primary key.
func IdFromString(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w '%s': %w", fault.ErrInvalidIdFormat, s, err)
	}
	if err := ValidateId(id); err != nil {
		return 0, err
	}
	return id, nil
}
