package tax

import "github.com/shopspring/decimal"

// TotalsOptions selects the calculation method and rounding policy for
// CalculateTotals. The zero value is exclusive pricing, half rounding and
// zero decimal places, since precision 0 is a valid explicit choice. Use
// DefaultTotalsOptions for the documented defaults, or Settings.TotalsOptions
// to derive them from settings.
type TotalsOptions struct {
	Method    Method
	Rounding  RoundingMethod
	Precision int
}

// DefaultPrecision is the number of decimal places used when no settings are
// supplied.
const DefaultPrecision = 2

// DefaultTotalsOptions returns exclusive pricing rounded half away from zero
// at DefaultPrecision.
func DefaultTotalsOptions() TotalsOptions {
	return TotalsOptions{Method: MethodExclusive, Rounding: RoundingRound, Precision: DefaultPrecision}
}

// TotalsOptions derives the totals options from the settings.
func (s Settings) TotalsOptions() TotalsOptions {
	return TotalsOptions{
		Method:    s.CalculationMethod,
		Rounding:  s.RoundingMethod,
		Precision: s.RoundingPrecision,
	}
}

// CalculateTotals computes subtotal, tax and total for one amount.
//
// Subtotal and total are rounded half away from zero at opts.Precision; the
// tax amount follows opts.Rounding. For exclusive pricing the total is the
// rounded subtotal plus the tax amount, so the two always add up exactly.
func CalculateTotals(subtotal, rate float64, opts TotalsOptions) LineTotals {
	amount, ok := toDecimal(subtotal)
	if !ok {
		return LineTotals{Subtotal: subtotal, TaxRate: rate, Total: subtotal, Method: normalizeMethod(opts.Method)}
	}
	return calculateTotals(amount, rate, opts).lineTotals()
}

type decimalTotals struct {
	subtotal decimal.Decimal
	rate     float64
	tax      decimal.Decimal
	total    decimal.Decimal
	method   Method
}

func (t decimalTotals) lineTotals() LineTotals {
	return LineTotals{
		Subtotal:  toFloat(t.subtotal),
		TaxRate:   t.rate,
		TaxAmount: toFloat(t.tax),
		Total:     toFloat(t.total),
		Method:    t.method,
	}
}

func calculateTotals(subtotal decimal.Decimal, rate float64, opts TotalsOptions) decimalTotals {
	method := normalizeMethod(opts.Method)
	tax := calculateTax(subtotal, rate, method, opts.Rounding, opts.Precision)
	rounded := roundAmount(subtotal, RoundingRound, opts.Precision)
	total := rounded
	if method == MethodExclusive {
		total = rounded.Add(tax)
	}
	return decimalTotals{
		subtotal: rounded,
		rate:     rate,
		tax:      tax,
		total:    total,
		method:   method,
	}
}

func normalizeMethod(m Method) Method {
	if m == MethodInclusive {
		return MethodInclusive
	}
	return MethodExclusive
}
