package tax

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundAmountClampsPrecision(t *testing.T) {
	d := decimal.RequireFromString("1.23456")

	got := roundAmount(d, RoundingRound, math.MaxInt)
	assert.True(t, got.Equal(d), got.String())

	got = roundAmount(d, RoundingFloor, -4)
	assert.True(t, got.Equal(decimal.NewFromInt(1)), got.String())

	got = roundAmount(decimal.RequireFromString("0.1234567890123456789"), RoundingCeil, 40)
	assert.True(t, got.Equal(decimal.RequireFromString("0.123456789012345679")), got.String())
}
