package tax

// RateContext is the input to rate resolution for a single line.
type RateContext struct {
	Product  *Product
	Customer *Customer
	Override *float64
	Settings Settings
}

// Strategy is one precedence level of rate resolution.
type Strategy interface {
	Applies(ctx RateContext) bool
	Rate(ctx RateContext) float64
	Source() Source
}

// Resolution is the effective rate together with its provenance.
type Resolution struct {
	Rate            float64
	Source          Source
	ExemptionReason string
}

type rule struct {
	source  Source
	applies func(RateContext) bool
	rate    func(RateContext) float64
	reason  func(RateContext) string
}

func (r rule) Applies(ctx RateContext) bool { return r.applies(ctx) }
func (r rule) Rate(ctx RateContext) float64 { return r.rate(ctx) }
func (r rule) Source() Source { return r.source }

func (r rule) exemptionReason(ctx RateContext) string {
	if r.reason == nil {
		return ""
	}
	return r.reason(ctx)
}

// OverrideStrategy applies an explicit per-line rate, including zero. It is
// the only level that bypasses customer exemption.
func OverrideStrategy() Strategy {
	return rule{
		source:  SourceOverride,
		applies: func(ctx RateContext) bool { return ctx.Override != nil },
		rate:    func(ctx RateContext) float64 { return *ctx.Override },
	}
}

// CustomerExemptionStrategy zeroes the rate for tax-exempt customers.
func CustomerExemptionStrategy() Strategy {
	return rule{
		source: SourceCustomer,
		applies: func(ctx RateContext) bool {
			return ctx.Settings.AllowCustomerExemption && ctx.Customer != nil && ctx.Customer.TaxExempt
		},
		rate:   func(RateContext) float64 { return 0 },
		reason: func(ctx RateContext) string { return ctx.Customer.ExemptionReason },
	}
}

// CustomerOverrideStrategy applies a customer-specific rate.
func CustomerOverrideStrategy() Strategy {
	return rule{
		source: SourceCustomer,
		applies: func(ctx RateContext) bool {
			return ctx.Settings.AllowCustomerExemption && ctx.Customer != nil && ctx.Customer.TaxRateOverride != nil
		},
		rate: func(ctx RateContext) float64 { return *ctx.Customer.TaxRateOverride },
	}
}

// ProductStrategy applies a product-specific rate.
func ProductStrategy() Strategy {
	return rule{
		source: SourceProduct,
		applies: func(ctx RateContext) bool {
			return ctx.Settings.AllowProductOverride && ctx.Product != nil && ctx.Product.TaxRate != nil
		},
		rate: func(ctx RateContext) float64 { return *ctx.Product.TaxRate },
	}
}

// CategoryStrategy applies the rate of the product's category. It is not part
// of DefaultStrategies; insert it after ProductStrategy to enable it.
func CategoryStrategy() Strategy {
	return rule{
		source: SourceCategory,
		applies: func(ctx RateContext) bool {
			return ctx.Settings.AllowProductOverride && ctx.Product != nil && ctx.Product.CategoryTaxRate != nil
		},
		rate: func(ctx RateContext) float64 { return *ctx.Product.CategoryTaxRate },
	}
}

// SystemDefaultStrategy always applies and returns Settings.DefaultRate.
func SystemDefaultStrategy() Strategy {
	return rule{
		source:  SourceSystem,
		applies: func(RateContext) bool { return true },
		rate:    func(ctx RateContext) float64 { return ctx.Settings.DefaultRate },
	}
}

// DefaultStrategies returns the standard precedence order: override,
// customer exemption, customer rate, product rate, system default.
func DefaultStrategies() []Strategy {
	return []Strategy{
		OverrideStrategy(),
		CustomerExemptionStrategy(),
		CustomerOverrideStrategy(),
		ProductStrategy(),
		SystemDefaultStrategy(),
	}
}

// Resolver evaluates strategies in order; the first applicable one wins.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds a resolver over the given strategies. An empty list
// yields the default precedence order.
func NewResolver(strategies ...Strategy) Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	cp := make([]Strategy, len(strategies))
	copy(cp, strategies)
	return Resolver{strategies: cp}
}

// Resolve returns the effective rate and its source. When no strategy applies
// the system default rate is returned.
func (r Resolver) Resolve(ctx RateContext) Resolution {
	strategies := r.strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	for _, s := range strategies {
		if !s.Applies(ctx) {
			continue
		}
		res := Resolution{Rate: s.Rate(ctx), Source: s.Source()}
		if rr, ok := s.(rule); ok {
			res.ExemptionReason = rr.exemptionReason(ctx)
		}
		return res
	}
	return Resolution{Rate: ctx.Settings.DefaultRate, Source: SourceSystem}
}

// Config wraps Resolve into a TaxConfig.
func (r Resolver) Config(ctx RateContext) TaxConfig {
	res := r.Resolve(ctx)
	return TaxConfig{
		Rate:             res.Rate,
		IsExempt:         res.Rate == 0,
		Source:           res.Source,
		InclusivePricing: ctx.Settings.InclusivePricingDefault,
		ExemptionReason:  res.ExemptionReason,
	}
}

// ResolveRate returns the effective tax rate for one line using the default
// precedence order.
func ResolveRate(product *Product, customer *Customer, override *float64, settings Settings) float64 {
	return NewResolver().Resolve(RateContext{
		Product:  product,
		Customer: customer,
		Override: override,
		Settings: settings,
	}).Rate
}

// GetTaxConfig resolves the effective rate and reports which precedence level
// produced it.
func GetTaxConfig(product *Product, customer *Customer, override *float64, settings Settings) TaxConfig {
	return NewResolver().Config(RateContext{
		Product:  product,
		Customer: customer,
		Override: override,
		Settings: settings,
	})
}
