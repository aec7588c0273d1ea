package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateOrderTaxBreakdown(t *testing.T) {
	items := []OrderLine{
		{Quantity: 1, UnitPrice: 100000},
		{Quantity: 1, UnitPrice: 50000, Product: productWithRate(0)},
	}

	got := CalculateOrderTaxBreakdown(items, nil, testSettings())

	assert.Equal(t, 150000.0, got.Subtotal)
	assert.Equal(t, 11000.0, got.TotalTax)
	assert.Equal(t, 161000.0, got.Total)
	require.Len(t, got.Breakdown, 2)
	assert.Equal(t, RateBreakdown{Rate: 11, Amount: 11000, Items: 1, Label: "11%"}, got.Breakdown[0])
	assert.Equal(t, RateBreakdown{Rate: 0, Amount: 0, Items: 1, Label: "Tax Exempt"}, got.Breakdown[1])
}

func TestCalculateOrderTaxBreakdownEmpty(t *testing.T) {
	got := CalculateOrderTaxBreakdown(nil, nil, testSettings())
	assert.Equal(t, OrderTaxBreakdown{Breakdown: []RateBreakdown{}}, got)
	assert.NotNil(t, got.Breakdown)
}

func TestCalculateOrderTaxBreakdownFirstOccurrenceOrder(t *testing.T) {
	items := []OrderLine{
		{Quantity: 1, UnitPrice: 100},
		{Quantity: 2, UnitPrice: 50, Product: productWithRate(5)},
		{Quantity: 1, UnitPrice: 10, TaxRateOverride: Rate(11.0)},
		{Quantity: 1, UnitPrice: 10, TaxRateOverride: Rate(0)},
		{Quantity: 1, UnitPrice: 10, TaxRateOverride: Rate(11.5)},
	}

	got := CalculateOrderTaxBreakdown(items, nil, testSettings())

	rates := make([]float64, 0, len(got.Breakdown))
	for _, b := range got.Breakdown {
		rates = append(rates, b.Rate)
	}
	assert.Equal(t, []float64{11, 5, 0, 11.5}, rates, "first occurrence order, not numeric order")
	assert.Equal(t, 2, got.Breakdown[0].Items, "11 and 11.0 share a bucket")
	assert.Equal(t, 12.1, got.Breakdown[0].Amount)
}

func TestCalculateOrderTaxBreakdownConsistency(t *testing.T) {
	customer := &Customer{TaxRateOverride: Rate(7.5)}
	items := []OrderLine{
		{Quantity: 3, UnitPrice: 19.99},
		{Quantity: 1, UnitPrice: 0.33, TaxRateOverride: Rate(12.5)},
		{Quantity: 7, UnitPrice: 1.13},
		{Quantity: 2, UnitPrice: 0.335, TaxRateOverride: Rate(12.5)},
		{Quantity: 1, UnitPrice: 4999.95, TaxRateOverride: Rate(0)},
		{Quantity: 0, UnitPrice: 10},
	}

	got := CalculateOrderTaxBreakdown(items, customer, testSettings())

	var amounts float64
	var count int
	for _, b := range got.Breakdown {
		amounts += b.Amount
		count += b.Items
	}
	assert.InDelta(t, got.TotalTax, amounts, 1e-9)
	assert.Equal(t, len(items), count)
	assert.InDelta(t, got.Subtotal+got.TotalTax, got.Total, 1e-9)
	assert.Len(t, got.Breakdown, 3)
}

func TestCalculateOrderTaxBreakdownExemptCustomer(t *testing.T) {
	items := []OrderLine{
		{Quantity: 1, UnitPrice: 100, Product: productWithRate(5)},
		{Quantity: 1, UnitPrice: 100, TaxRateOverride: Rate(11)},
	}

	got := CalculateOrderTaxBreakdown(items, exemptCustomer(), testSettings())

	assert.Equal(t, 11.0, got.TotalTax, "override is the only path past exemption")
	require.Len(t, got.Breakdown, 2)
	assert.Equal(t, "Tax Exempt", got.Breakdown[0].Label)
	assert.Equal(t, 0.0, got.Breakdown[0].Amount)
}
