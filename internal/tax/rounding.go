package tax

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// toDecimal converts a float input. Non-finite values report ok=false so the
// calculators can fall back to a zeroed result instead of panicking.
func toDecimal(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// maxPrecision bounds the decimal places accepted by roundAmount so the
// conversion to int32 cannot wrap.
const maxPrecision = 18

// roundAmount applies the rounding policy once, at the given number of
// decimal places, clamped to [0, maxPrecision]. Round is half away from zero.
func roundAmount(d decimal.Decimal, method RoundingMethod, precision int) decimal.Decimal {
	precision = min(max(precision, 0), maxPrecision)
	places := int32(precision)
	switch method {
	case RoundingFloor:
		return d.RoundFloor(places)
	case RoundingCeil:
		return d.RoundCeil(places)
	default:
		return d.Round(places)
	}
}

func toFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
