// Package tax decides which tax rate applies to a sales line and computes tax
// amounts, line totals, order breakdowns and reverse (tax-inclusive) splits.
//
// Every function in this package is a pure computation over its arguments.
// Nothing here logs, performs I/O or returns errors; degenerate numeric input
// yields a zeroed result. Callers validate input before invoking the engine.
package tax

// Method selects how a rate is applied to an amount.
type Method string

const (
	// MethodExclusive adds tax on top of the given subtotal.
	MethodExclusive Method = "exclusive"
	// MethodInclusive treats the given amount as already containing tax.
	MethodInclusive Method = "inclusive"
)

// RoundingMethod selects how the final tax amount is rounded.
type RoundingMethod string

const (
	RoundingRound RoundingMethod = "round"
	RoundingFloor RoundingMethod = "floor"
	RoundingCeil  RoundingMethod = "ceil"
)

// Source records which precedence level produced an effective rate.
type Source string

const (
	SourceSystem   Source = "system"
	SourceProduct  Source = "product"
	SourceCategory Source = "category"
	SourceCustomer Source = "customer"
	SourceOverride Source = "override"
)

// Settings is the process-wide tax configuration. It is passed by value into
// every calculation and must not be mutated while a calculation is running.
type Settings struct {
	DefaultRate             float64        `json:"default_rate"`
	AllowProductOverride    bool           `json:"allow_product_override"`
	AllowCustomerExemption  bool           `json:"allow_customer_exemption"`
	InclusivePricingDefault bool           `json:"inclusive_pricing_default"`
	CalculationMethod       Method         `json:"tax_calculation_method"`
	RoundingMethod          RoundingMethod `json:"rounding_method"`
	RoundingPrecision       int            `json:"rounding_precision"`
}

// Product carries the tax attributes of a catalog product.
type Product struct {
	ID              int64    `json:"id"`
	TaxRate         *float64 `json:"tax_rate,omitempty"`
	CategoryTaxRate *float64 `json:"category_tax_rate,omitempty"`
}

// Customer carries the tax attributes of a customer.
type Customer struct {
	ID              int64    `json:"id"`
	TaxExempt       bool     `json:"tax_exempt"`
	TaxRateOverride *float64 `json:"tax_rate_override,omitempty"`
	ExemptionReason string   `json:"exemption_reason,omitempty"`
}

// TaxConfig describes the rate applied to one calculation and why.
type TaxConfig struct {
	Rate             float64 `json:"rate"`
	IsExempt         bool    `json:"is_exempt"`
	Source           Source  `json:"source"`
	InclusivePricing bool    `json:"inclusive_pricing"`
	ExemptionReason  string  `json:"exemption_reason,omitempty"`
}

// LineTotals is the computed result for a single amount or order line.
//
// For MethodExclusive, Total == Subtotal + TaxAmount. For MethodInclusive,
// Total == Subtotal and TaxAmount is the portion embedded in it.
type LineTotals struct {
	Subtotal  float64 `json:"subtotal"`
	TaxRate   float64 `json:"tax_rate"`
	TaxAmount float64 `json:"tax_amount"`
	Total     float64 `json:"total"`
	Method    Method  `json:"method"`
}

// OrderLine is one line of an order submitted for aggregation.
type OrderLine struct {
	Quantity        float64  `json:"quantity"`
	UnitPrice       float64  `json:"unit_price"`
	Product         *Product `json:"product,omitempty"`
	TaxRateOverride *float64 `json:"tax_rate_override,omitempty"`
}

// RateBreakdown summarises the tax contributed by all lines sharing a rate.
type RateBreakdown struct {
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
	Items  int     `json:"items"`
	Label  string  `json:"label"`
}

// OrderTaxBreakdown is the aggregated tax result for an order.
type OrderTaxBreakdown struct {
	Subtotal  float64         `json:"subtotal"`
	TotalTax  float64         `json:"total_tax"`
	Total     float64         `json:"total"`
	Breakdown []RateBreakdown `json:"breakdown"`
}

// ReverseResult splits a tax-inclusive total into its components.
type ReverseResult struct {
	Subtotal  float64 `json:"subtotal"`
	TaxAmount float64 `json:"tax_amount"`
	TaxRate   float64 `json:"tax_rate"`
}

// Rate returns a pointer to r, for optional rate fields.
func Rate(r float64) *float64 {
	return &r
}
