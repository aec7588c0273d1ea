package tax

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrRateOutOfRange    = errors.New("tax rate must be between 0 and 100")
	ErrInvalidMethod     = errors.New("unknown tax calculation method")
	ErrInvalidRounding   = errors.New("unknown rounding method")
	ErrNegativePrecision = errors.New("rounding precision must not be negative")
)

// IsValidTaxRate reports whether rate is a finite percentage in [0, 100].
func IsValidTaxRate(rate float64) bool {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return false
	}
	return rate >= 0 && rate <= 100
}

// Valid reports whether m is a known calculation method.
func (m Method) Valid() bool {
	return m == MethodExclusive || m == MethodInclusive
}

// Valid reports whether r is a known rounding method.
func (r RoundingMethod) Valid() bool {
	switch r {
	case RoundingRound, RoundingFloor, RoundingCeil:
		return true
	}
	return false
}

// Validate checks the settings invariants. The calculators never call it;
// configuration loaders do.
func (s Settings) Validate() error {
	if !IsValidTaxRate(s.DefaultRate) {
		return fmt.Errorf("default rate %v: %w", s.DefaultRate, ErrRateOutOfRange)
	}
	if !s.CalculationMethod.Valid() {
		return fmt.Errorf("%q: %w", s.CalculationMethod, ErrInvalidMethod)
	}
	if !s.RoundingMethod.Valid() {
		return fmt.Errorf("%q: %w", s.RoundingMethod, ErrInvalidRounding)
	}
	if s.RoundingPrecision < 0 {
		return ErrNegativePrecision
	}
	return nil
}
