package pricing

import (
	"math"
	"strings"

	"github.com/ordbot/storefront/internal/domain"
)

type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingTracked  ShippingMethod = "tracked"
	ShippingNextDay  ShippingMethod = "nextday"
)

// Flat surcharge per shipping method, in fiat.
var shippingFees = map[ShippingMethod]float64{
	ShippingStandard: 0,
	ShippingTracked:  5,
	ShippingNextDay:  10,
}

// Static discount table. An unrecognised code is treated as 0%, never as an
// error; the checkout conversation tells the customer before proceeding.
var discountCodes = map[string]float64{
	"SAVE10":   10,
	"SAVE20":   20,
	"WELCOME5": 5,
}

func ParseShipping(s string) (ShippingMethod, bool) {
	m := ShippingMethod(strings.ToLower(strings.TrimSpace(s)))
	_, ok := shippingFees[m]
	return m, ok
}

func ShippingFee(m ShippingMethod) float64 {
	return shippingFees[m]
}

// DiscountPercent reports the percentage for a code and whether the code is
// known.
func DiscountPercent(code string) (float64, bool) {
	pct, ok := discountCodes[strings.ToUpper(strings.TrimSpace(code))]
	return pct, ok
}

type Quote struct {
	Subtotal        float64
	DiscountPercent float64
	DiscountAmount  float64
	ShippingAmount  float64
	TotalFiat       float64
	TotalCrypto     float64
	ExchangeRate    float64
}

// Compute prices a basket. Each line's UnitPrice is the price of the whole
// tier bundle, so the subtotal is a plain sum over lines.
func Compute(lines []domain.CartLine, method ShippingMethod, discountCode string, rate float64) Quote {
	var subtotal float64
	for _, l := range lines {
		subtotal += l.UnitPrice
	}
	subtotal = Round2(subtotal)

	pct, _ := DiscountPercent(discountCode)
	discount := Round2(subtotal * pct / 100)
	shipping := shippingFees[method]
	total := Round2(subtotal - discount + shipping)

	return Quote{
		Subtotal:        subtotal,
		DiscountPercent: pct,
		DiscountAmount:  discount,
		ShippingAmount:  shipping,
		TotalFiat:       total,
		TotalCrypto:     Round6(total / rate),
		ExchangeRate:    rate,
	}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
