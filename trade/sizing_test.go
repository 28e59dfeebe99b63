package trade

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guyvdb/tradestore/fault"
)

func holding50(t *testing.T) *Trade {
	t.Helper()
	tr, err := New("AAPL", testPlan())
	require.NoError(t, err)
	_, err = tr.Buy(DefaultCalculator(), 0, 50, d("100"), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	return tr
}

func TestPositionAt(t *testing.T) {
	calc := DefaultCalculator()
	tr := holding50(t)

	// 1000 at risk over 20 per share
	s, err := tr.PositionAt(calc, d("110"))
	require.NoError(t, err)
	assert.Equal(t, int64(50), s.Position)
	assertDecimal(t, "5500", s.Value)
	assert.True(t, calc.EstimateCostOfTrade(d("5500"), false).Total().Equal(s.Charges))

	s, err = tr.PositionAt(calc, d("80"))
	require.NoError(t, err)
	assert.Zero(t, s.Position)
	assert.True(t, s.Value.IsZero())

	_, err = tr.PositionAt(calc, d("0"))
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	tr.Plan = nil
	_, err = tr.PositionAt(calc, d("110"))
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestScaleIn(t *testing.T) {
	calc := DefaultCalculator()
	tr := holding50(t)
	// 1000 planned risk plus 500 open profit, less charges paid
	remaining := d("1500").Sub(tr.TotalCharges())

	s, err := tr.ScaleIn(calc, d("110"), d("100"))
	require.NoError(t, err)
	assert.Equal(t, remaining.Div(d("10")).IntPart(), s.Position)

	s, err = tr.ScaleIn(calc, d("110"), d("0"))
	require.NoError(t, err)
	assert.Equal(t, remaining.Div(d("20")).IntPart(), s.Position, "falls back to the plan stop")

	// a loss larger than the planned risk leaves nothing to add
	s, err = tr.ScaleIn(calc, d("70"), d("60"))
	require.NoError(t, err)
	assert.Zero(t, s.Position)
}

func TestPyramid(t *testing.T) {
	calc := DefaultCalculator()
	tr := holding50(t)
	profit := d("1000").Sub(tr.TotalCharges())

	s, err := tr.Pyramid(calc, d("120"), d("110"), d("50"))
	require.NoError(t, err)
	assert.Equal(t, profit.Div(d("2")).Div(d("10")).IntPart(), s.Position)
	assert.True(t, d("120").Mul(decimal.NewFromInt(s.Position)).Equal(s.Value))

	s, err = tr.Pyramid(calc, d("120"), d("110"), d("100"))
	require.NoError(t, err)
	assert.Zero(t, s.Position, "all profit locked in")

	s, err = tr.Pyramid(calc, d("95"), d("90"), d("0"))
	require.NoError(t, err)
	assert.Zero(t, s.Position, "no open profit")

	_, err = tr.Pyramid(calc, d("120"), d("110"), d("101"))
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestTrailStopLoss(t *testing.T) {
	tr := holding50(t)
	assertDecimal(t, "90", tr.StopLoss())

	monday := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	require.NoError(t, tr.TrailStopLoss(d("95"), monday))
	assertDecimal(t, "95", tr.StopLoss())
	require.Len(t, tr.Analyses, 1)
	assert.Equal(t, Day(monday), tr.Analyses[0].Date)

	assert.ErrorIs(t, tr.TrailStopLoss(d("93"), monday), fault.ErrInvalidArgument)
	assert.ErrorIs(t, tr.TrailStopLoss(d("0"), monday), fault.ErrInvalidArgument)

	require.NoError(t, tr.TrailStopLoss(d("97"), monday.Add(time.Hour)))
	assert.Len(t, tr.Analyses, 1, "one analysis per day")

	require.NoError(t, tr.TrailStopLoss(d("99"), monday.AddDate(0, 0, 1)))
	assert.Len(t, tr.Analyses, 2)
	assertDecimal(t, "99", tr.StopLoss())

	_, err := tr.Sell(DefaultCalculator(), 0, 50, d("105"), monday.AddDate(0, 0, 2), false)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.TrailStopLoss(d("100"), monday), fault.ErrInvalidArgument)
}

func TestPortfolio(t *testing.T) {
	tr := holding50(t)
	tr.ID = 3
	_, err := tr.Sell(DefaultCalculator(), 0, 20, d("110"), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)

	got := Portfolio([]*Trade{tr})
	require.Len(t, got, 1)
	h := got[0]
	assert.Equal(t, int64(3), h.ID)
	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, int64(30), h.Position)
	assert.Equal(t, int64(70), h.UnfilledPosition)
	assertDecimal(t, "100", h.AveragePrice)
	assertDecimal(t, "3000", h.CurrentInvestment)
	want := tr.TotalCharges().Div(d("50")).Mul(d("30")).Round(2)
	assert.True(t, want.Equal(h.CurrentInvestmentCharges), "want %s, got %s", want, h.CurrentInvestmentCharges)
	assert.True(t, tr.RealisedPnL().Equal(h.RealisedPnL))

	assert.Empty(t, Portfolio(nil))
}
