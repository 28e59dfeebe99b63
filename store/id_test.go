package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guyvdb/tradestore/fault"
)

func TestIdFromString(t *testing.T) {
	id, err := IdFromString(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = IdFromString("4x")
	assert.ErrorIs(t, err, fault.ErrInvalidIdFormat)

	_, err = IdFromString("0")
	assert.ErrorIs(t, err, fault.ErrInvalidId)
	assert.ErrorIs(t, ValidateId(-1), fault.ErrInvalidId)
	assert.NoError(t, ValidateId(1))
}
