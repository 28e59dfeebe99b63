package trade

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates is the brokerage schedule used to estimate the charges of a contract.
type Rates struct {
	IntraDayBrokerageCost decimal.Decimal `json:"intraDayBrokerageCost"`
	BrokerageCost         decimal.Decimal `json:"brokerageCost"`
	SttRate               decimal.Decimal `json:"sttRate"`
	IntraDaySttRate       decimal.Decimal `json:"intraDaySttRate"`
	Demat                 decimal.Decimal `json:"demat"`
	IntraDayStampDutyRate decimal.Decimal `json:"intraDayStampDutyRate"`
	StampDutyRate         decimal.Decimal `json:"stampDutyRate"`
	IntraDayExchangeFee   decimal.Decimal `json:"intraDayExchangeFee"`
	ExchangeFee           decimal.Decimal `json:"exchangeFee"`
	IntraDaySebiFee       decimal.Decimal `json:"intraDaySebiFee"`
	SebiFee               decimal.Decimal `json:"sebiFee"`
	GstRate               decimal.Decimal `json:"gstRate"`
	StampDutyCap          decimal.Decimal `json:"stampDutyCap"`
}

// DefaultRates returns the standard delivery and intraday schedule.
func DefaultRates() Rates {
	return Rates{
		IntraDayBrokerageCost: decimal.NewFromInt(20),
		BrokerageCost:         decimal.Zero,
		SttRate:               decimal.RequireFromString("0.001"),
		IntraDaySttRate:       decimal.RequireFromString("0.00025"),
		Demat:                 decimal.Zero,
		IntraDayStampDutyRate: decimal.RequireFromString("0.0001"),
		StampDutyRate:         decimal.RequireFromString("0.0001"),
		IntraDayExchangeFee:   decimal.RequireFromString("0.0000015"),
		ExchangeFee:           decimal.RequireFromString("0.0000015"),
		IntraDaySebiFee:       decimal.RequireFromString("0.0000325"),
		SebiFee:               decimal.RequireFromString("0.0000325"),
		GstRate:               decimal.RequireFromString("0.18"),
		StampDutyCap:          decimal.NewFromInt(100),
	}
}

// Charges itemizes the cost of one side of a contract.
type Charges struct {
	Brokerage decimal.Decimal `json:"brokerage"`
	Sebi      decimal.Decimal `json:"sebi"`
	Exchange  decimal.Decimal `json:"exchange"`
	Demat     decimal.Decimal `json:"demat"`
	StampDuty decimal.Decimal `json:"stampDuty"`
	Stt       decimal.Decimal `json:"stt"`
	Gst       decimal.Decimal `json:"gst"`
}

// Total sums every item.
func (c Charges) Total() decimal.Decimal {
	return decimal.Sum(c.Brokerage, c.Sebi, c.Exchange, c.Demat, c.StampDuty, c.Stt, c.Gst)
}

// Add returns the item-wise sum of c and o.
func (c Charges) Add(o Charges) Charges {
	return Charges{
		Brokerage: c.Brokerage.Add(o.Brokerage),
		Sebi:      c.Sebi.Add(o.Sebi),
		Exchange:  c.Exchange.Add(o.Exchange),
		Demat:     c.Demat.Add(o.Demat),
		StampDuty: c.StampDuty.Add(o.StampDuty),
		Stt:       c.Stt.Add(o.Stt),
		Gst:       c.Gst.Add(o.Gst),
	}
}

func (c Charges) round() Charges {
	return Charges{
		Brokerage: c.Brokerage.Round(2),
		Sebi:      c.Sebi.Round(2),
		Exchange:  c.Exchange.Round(2),
		Demat:     c.Demat.Round(2),
		StampDuty: c.StampDuty.Round(2),
		Stt:       c.Stt.Round(2),
		Gst:       c.Gst.Round(2),
	}
}

func (c Charges) String() string {
	return fmt.Sprintf("Brok:%s SEBI:%s Exch:%s Demat:%s Stamp:%s STT:%s GST:%s. Total:%s",
		c.Brokerage.StringFixed(2), c.Sebi.StringFixed(2), c.Exchange.StringFixed(2),
		c.Demat.StringFixed(2), c.StampDuty.StringFixed(2), c.Stt.StringFixed(2),
		c.Gst.StringFixed(2), c.Total().StringFixed(2))
}

// Calculator prices contracts against a Rates schedule.
type Calculator struct {
	Rates Rates
}

// NewCalculator returns a calculator for rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{Rates: rates}
}

// DefaultCalculator uses DefaultRates.
func DefaultCalculator() *Calculator {
	return NewCalculator(DefaultRates())
}

// PriceAndCost returns the charges for one side of a contract worth price.
func (c *Calculator) PriceAndCost(price decimal.Decimal, intraDay, sale bool) Charges {
	r := c.Rates
	pick := func(intra, delivery decimal.Decimal) decimal.Decimal {
		if intraDay {
			return intra
		}
		return delivery
	}

	ch := Charges{
		Exchange:  price.Mul(pick(r.IntraDayExchangeFee, r.ExchangeFee)),
		Sebi:      price.Mul(pick(r.IntraDaySebiFee, r.SebiFee)),
		Brokerage: pick(r.IntraDayBrokerageCost, r.BrokerageCost),
		Demat:     decimal.Zero,
	}
	if sale {
		ch.Demat = r.Demat
	}
	ch.Gst = decimal.Sum(ch.Demat, ch.Exchange, ch.Sebi, ch.Brokerage).Mul(r.GstRate)
	ch.StampDuty = price.Mul(pick(r.IntraDayStampDutyRate, r.StampDutyRate))
	if !r.StampDutyCap.IsZero() && ch.StampDuty.GreaterThan(r.StampDutyCap) {
		ch.StampDuty = r.StampDutyCap
	}
	ch.Stt = price.Mul(pick(r.IntraDaySttRate, r.SttRate))
	if intraDay && !sale {
		// no STT on intraday purchases
		ch.Stt = decimal.Zero
	}
	return ch.round()
}

// CostOfSale is PriceAndCost for the sell side.
func (c *Calculator) CostOfSale(price decimal.Decimal, intraDay bool) Charges {
	return c.PriceAndCost(price, intraDay, true)
}

// CostOfPurchase is PriceAndCost for the buy side.
func (c *Calculator) CostOfPurchase(price decimal.Decimal, intraDay bool) Charges {
	return c.PriceAndCost(price, intraDay, false)
}

// EstimateCostOfTrade prices a round trip: buying and later selling at price.
func (c *Calculator) EstimateCostOfTrade(price decimal.Decimal, intraDay bool) Charges {
	return c.CostOfPurchase(price, intraDay).Add(c.CostOfSale(price, intraDay))
}
