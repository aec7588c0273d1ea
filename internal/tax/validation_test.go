package tax

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTaxRate(t *testing.T) {
	assert.True(t, IsValidTaxRate(0))
	assert.True(t, IsValidTaxRate(11))
	assert.True(t, IsValidTaxRate(100))
	assert.False(t, IsValidTaxRate(-0.01))
	assert.False(t, IsValidTaxRate(100.5))
	assert.False(t, IsValidTaxRate(math.NaN()))
	assert.False(t, IsValidTaxRate(math.Inf(1)))
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, testSettings().Validate())

	s := testSettings()
	s.DefaultRate = 120
	assert.ErrorIs(t, s.Validate(), ErrRateOutOfRange)

	s = testSettings()
	s.CalculationMethod = "gross"
	assert.ErrorIs(t, s.Validate(), ErrInvalidMethod)

	s = testSettings()
	s.RoundingMethod = "bankers"
	assert.ErrorIs(t, s.Validate(), ErrInvalidRounding)

	s = testSettings()
	s.RoundingPrecision = -1
	assert.ErrorIs(t, s.Validate(), ErrNegativePrecision)
}
