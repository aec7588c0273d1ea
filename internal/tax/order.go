package tax

import "github.com/shopspring/decimal"

type rateBucket struct {
	rate   float64
	amount decimal.Decimal
	items  int
}

// CalculateOrderTaxBreakdown evaluates every line for the customer and sums
// subtotals and tax. Tax is grouped by the resolved rate using exact numeric
// equality; breakdown entries appear in first-occurrence order, not numeric
// order. An empty order yields zero totals and an empty breakdown.
func CalculateOrderTaxBreakdown(items []OrderLine, customer *Customer, settings Settings) OrderTaxBreakdown {
	return NewResolver().OrderTaxBreakdown(items, customer, settings)
}

// OrderTaxBreakdown is CalculateOrderTaxBreakdown using r's precedence chain.
func (r Resolver) OrderTaxBreakdown(items []OrderLine, customer *Customer, settings Settings) OrderTaxBreakdown {
	subtotal := decimal.Zero
	totalTax := decimal.Zero
	index := make(map[float64]int)
	buckets := make([]rateBucket, 0)

	for _, item := range items {
		line := evaluateLine(item.Quantity, item.UnitPrice, item.Product, customer, LineOptions{
			TaxRateOverride: item.TaxRateOverride,
			Settings:        settings,
			Resolver:        &r,
		})
		subtotal = subtotal.Add(line.subtotal)
		totalTax = totalTax.Add(line.tax)

		i, ok := index[line.rate]
		if !ok {
			i = len(buckets)
			index[line.rate] = i
			buckets = append(buckets, rateBucket{rate: line.rate, amount: decimal.Zero})
		}
		buckets[i].amount = buckets[i].amount.Add(line.tax)
		buckets[i].items++
	}

	breakdown := make([]RateBreakdown, 0, len(buckets))
	for _, b := range buckets {
		breakdown = append(breakdown, RateBreakdown{
			Rate:   b.rate,
			Amount: toFloat(b.amount),
			Items:  b.items,
			Label:  FormatTaxRate(b.rate),
		})
	}

	return OrderTaxBreakdown{
		Subtotal:  toFloat(subtotal),
		TotalTax:  toFloat(totalTax),
		Total:     toFloat(subtotal.Add(totalTax)),
		Breakdown: breakdown,
	}
}
