package tax

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const exemptLabel = "Tax Exempt"

// knownRates annotates the canonical rates in verbose labels. Display only.
var knownRates = map[float64]string{
	5:  "Reduced",
	10: "Former PPN",
	11: "PPN",
	15: "Luxury",
}

type formatOptions struct {
	verbose          bool
	showZeroAsExempt bool
}

// FormatOption customises FormatTaxRate.
type FormatOption func(*formatOptions)

// WithVerbose appends the known-rate annotation for canonical rates.
func WithVerbose() FormatOption {
	return func(o *formatOptions) { o.verbose = true }
}

// WithZeroAsExempt controls whether a zero rate renders as "Tax Exempt"
// (the default) or as "0%".
func WithZeroAsExempt(show bool) FormatOption {
	return func(o *formatOptions) { o.showZeroAsExempt = show }
}

// FormatTaxRate renders a rate as a human-readable label, e.g. "11%",
// "11% (PPN)" in verbose mode, or "Tax Exempt" for zero.
func FormatTaxRate(rate float64, opts ...FormatOption) string {
	o := formatOptions{showZeroAsExempt: true}
	for _, opt := range opts {
		opt(&o)
	}
	if rate == 0 && o.showZeroAsExempt {
		return exemptLabel
	}
	label := strconv.FormatFloat(rate, 'f', -1, 64) + "%"
	if o.verbose {
		if note, ok := knownRates[rate]; ok {
			label += " (" + note + ")"
		}
	}
	return label
}

// FormatAmount renders a monetary amount with the locale's grouping and
// decimal separators at a fixed number of decimal places.
func FormatAmount(amount float64, precision int, tag language.Tag) string {
	if precision < 0 {
		precision = 0
	}
	p := message.NewPrinter(tag)
	return p.Sprintf("%v", number.Decimal(amount, number.Scale(precision)))
}
