package tax

// LineOptions configures CalculateLineItemTotals.
type LineOptions struct {
	// TaxRateOverride, when set, wins over every other precedence level.
	TaxRateOverride *float64
	// Settings supplies the default rate, feature toggles and rounding policy.
	// The zero value means a 0% default rate at precision 0; callers without
	// configuration pass taxsettings.Defaults().
	Settings Settings
	// Method overrides Settings.CalculationMethod when non-empty.
	Method Method
	// Resolver overrides the default precedence chain when non-nil.
	Resolver *Resolver
}

// CalculateLineItemTotals computes totals for quantity × unitPrice using the
// effective rate for the product and customer. Quantity and unit price are
// expected to be non-negative finite numbers; the caller validates them. A
// non-finite input is treated as a zero subtotal.
func CalculateLineItemTotals(quantity, unitPrice float64, product *Product, customer *Customer, opts LineOptions) LineTotals {
	return evaluateLine(quantity, unitPrice, product, customer, opts).lineTotals()
}

func evaluateLine(quantity, unitPrice float64, product *Product, customer *Customer, opts LineOptions) decimalTotals {
	rate := opts.resolver().Resolve(RateContext{
		Product:  product,
		Customer: customer,
		Override: opts.TaxRateOverride,
		Settings: opts.Settings,
	}).Rate
	// toDecimal yields zero for non-finite input, which zeroes the product.
	q, _ := toDecimal(quantity)
	p, _ := toDecimal(unitPrice)
	return calculateTotals(q.Mul(p), rate, opts.totalsOptions())
}

func (o LineOptions) resolver() Resolver {
	if o.Resolver != nil {
		return *o.Resolver
	}
	return NewResolver()
}

func (o LineOptions) totalsOptions() TotalsOptions {
	opts := o.Settings.TotalsOptions()
	if o.Method != "" {
		opts.Method = o.Method
	}
	return opts
}
