package tax

import "github.com/shopspring/decimal"

// CalculateTax computes the tax for subtotal at rate percent.
//
// With MethodExclusive the tax is subtotal*rate/100. With MethodInclusive the
// subtotal already contains tax and the embedded portion is extracted:
// subtotal - subtotal/(1+rate/100). Any other method is treated as exclusive.
// A non-positive rate or subtotal yields 0. Rounding is applied once, to the
// final amount.
func CalculateTax(subtotal, rate float64, method Method, rounding RoundingMethod, precision int) float64 {
	amount, ok := toDecimal(subtotal)
	if !ok {
		return 0
	}
	return toFloat(calculateTax(amount, rate, method, rounding, precision))
}

func calculateTax(subtotal decimal.Decimal, rate float64, method Method, rounding RoundingMethod, precision int) decimal.Decimal {
	r, ok := toDecimal(rate)
	if !ok || !r.IsPositive() || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var raw decimal.Decimal
	if method == MethodInclusive {
		net := subtotal.Mul(hundred).Div(hundred.Add(r))
		raw = subtotal.Sub(net)
	} else {
		raw = subtotal.Mul(r).Div(hundred)
	}
	return roundAmount(raw, rounding, precision)
}
