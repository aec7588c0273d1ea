package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLineItemTotals(t *testing.T) {
	settings := testSettings()

	got := CalculateLineItemTotals(5, 20000, nil, nil, LineOptions{Settings: settings})
	assert.Equal(t, LineTotals{Subtotal: 100000, TaxRate: 11, TaxAmount: 11000, Total: 111000, Method: MethodExclusive}, got)

	got = CalculateLineItemTotals(5, 20000, nil, &Customer{TaxExempt: true}, LineOptions{Settings: settings})
	assert.Equal(t, 0.0, got.TaxAmount)
	assert.Equal(t, 100000.0, got.Total)
	assert.Equal(t, 0.0, got.TaxRate)
}

func TestCalculateLineItemTotalsOptions(t *testing.T) {
	settings := testSettings()

	got := CalculateLineItemTotals(3, 37000, productWithRate(5), nil, LineOptions{Settings: settings, Method: MethodInclusive})
	assert.Equal(t, MethodInclusive, got.Method)
	assert.Equal(t, 111000.0, got.Total)
	assert.Equal(t, 5285.71, got.TaxAmount)

	got = CalculateLineItemTotals(1, 100, productWithRate(5), nil, LineOptions{Settings: settings, TaxRateOverride: Rate(20)})
	assert.Equal(t, 20.0, got.TaxRate)
	assert.Equal(t, 120.0, got.Total)

	inclusive := settings
	inclusive.CalculationMethod = MethodInclusive
	got = CalculateLineItemTotals(1, 111, nil, nil, LineOptions{Settings: inclusive})
	assert.Equal(t, MethodInclusive, got.Method)
	assert.Equal(t, 11.0, got.TaxAmount)
	assert.Equal(t, 111.0, got.Total)
}

func TestCalculateLineItemTotalsNoIntermediateRounding(t *testing.T) {
	got := CalculateLineItemTotals(3, 0.335, nil, nil, LineOptions{Settings: testSettings()})
	// 1.005 * 11% = 0.11055, rounded once.
	assert.Equal(t, 1.01, got.Subtotal)
	assert.Equal(t, 0.11, got.TaxAmount)
	assert.Equal(t, 1.12, got.Total)
}
