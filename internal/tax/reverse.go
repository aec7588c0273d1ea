package tax

// CalculateReverseTax splits a tax-inclusive total into subtotal and tax at
// rate percent, rounding each part independently.
//
// A non-positive rate returns the total as the subtotal with zero tax and a
// reported rate of 0, whatever rate was passed in. Callers use the zero rate
// to detect that no tax was extracted.
func CalculateReverseTax(totalInclusive, rate float64, rounding RoundingMethod, precision int) ReverseResult {
	r, okR := toDecimal(rate)
	total, okT := toDecimal(totalInclusive)
	if !okR || !okT || !r.IsPositive() {
		return ReverseResult{Subtotal: totalInclusive, TaxAmount: 0, TaxRate: 0}
	}
	subtotal := total.Mul(hundred).Div(hundred.Add(r))
	taxAmount := total.Sub(subtotal)
	return ReverseResult{
		Subtotal:  toFloat(roundAmount(subtotal, rounding, precision)),
		TaxAmount: toFloat(roundAmount(taxAmount, rounding, precision)),
		TaxRate:   rate,
	}
}
