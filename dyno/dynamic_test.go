package dyno

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guyvdb/tradestore/fault"
)

type sample struct {
	Symbol string   `json:"symbol"`
	Size   int      `json:"size"`
	Tags   []string `json:"tags"`
}

func TestFromValue(t *testing.T) {
	o, err := FromValue("sample", sample{Symbol: "AAPL", Size: 3, Tags: []string{"x"}})
	require.NoError(t, err)

	assert.Equal(t, "sample", o.Type)
	assert.Equal(t, "AAPL", o.GetProperty("symbol"))
	assert.Equal(t, float64(3), o.GetProperty("size"))
	assert.Equal(t, []any{"x"}, o.GetProperty("tags"))

	o.SetProperty("closed", true)
	assert.Equal(t, true, o.Map()["closed"])
	assert.Nil(t, o.GetProperty("missing"))
}

func TestFromValueRejectsScalars(t *testing.T) {
	_, err := FromValue("n", 42)
	assert.ErrorIs(t, err, fault.ErrSerialization)
}
