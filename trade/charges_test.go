package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChargesDelivery(t *testing.T) {
	calc := DefaultCalculator()

	buy := calc.CostOfPurchase(d("10000"), false)
	assertDecimal(t, "0.02", buy.Exchange)
	assertDecimal(t, "0.33", buy.Sebi)
	assertDecimal(t, "0.06", buy.Gst)
	assertDecimal(t, "1", buy.StampDuty)
	assertDecimal(t, "10", buy.Stt)
	assertDecimal(t, "11.41", buy.Total())

	assertDecimal(t, "22.82", calc.EstimateCostOfTrade(d("10000"), false).Total())
}

func TestChargesIntraDay(t *testing.T) {
	calc := DefaultCalculator()

	buy := calc.CostOfPurchase(d("10000"), true)
	assertDecimal(t, "20", buy.Brokerage)
	assert.True(t, buy.Stt.IsZero(), "no STT on intraday purchases")
	assertDecimal(t, "3.66", buy.Gst)
	assertDecimal(t, "25.01", buy.Total())

	sell := calc.CostOfSale(d("10000"), true)
	assertDecimal(t, "2.5", sell.Stt)
}

func TestStampDutyCapped(t *testing.T) {
	calc := DefaultCalculator()
	assertDecimal(t, "100", calc.CostOfPurchase(d("5000000"), false).StampDuty)
}
