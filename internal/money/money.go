package money

import "math"

// TaxRate is the fixed tax applied to the order subtotal.
const TaxRate = 0.05

// Round2 rounds to two decimal places, halves away from zero.
// All monetary comparisons in the service go through Round2 first,
// so totals can be checked with exact equality.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Totals holds the four monetary fields of an order.
type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
}

// Compute derives the authoritative totals from a raw subtotal and the
// configured delivery fee: tax is TaxRate of the rounded subtotal, and
// total = subtotal + tax + deliveryFee.
func Compute(subtotal, deliveryFee float64) Totals {
	sub := Round2(subtotal)
	tax := Round2(sub * TaxRate)
	return Totals{
		Subtotal:    sub,
		Tax:         tax,
		DeliveryFee: deliveryFee,
		Total:       Round2(sub + tax + deliveryFee),
	}
}

// Equal reports whether other matches t after rounding each of other's
// fields. t is assumed to already be in rounded form.
func (t Totals) Equal(other Totals) bool {
	return Round2(other.Subtotal) == t.Subtotal &&
		Round2(other.Tax) == t.Tax &&
		Round2(other.DeliveryFee) == t.DeliveryFee &&
		Round2(other.Total) == t.Total
}
