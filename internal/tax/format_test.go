package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestFormatTaxRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		opts []FormatOption
		want string
	}{
		{"zero is exempt by default", 0, nil, "Tax Exempt"},
		{"zero as percent", 0, []FormatOption{WithZeroAsExempt(false)}, "0%"},
		{"plain rate", 11, nil, "11%"},
		{"fractional rate", 11.5, nil, "11.5%"},
		{"verbose known rate", 11, []FormatOption{WithVerbose()}, "11% (PPN)"},
		{"verbose reduced rate", 5, []FormatOption{WithVerbose()}, "5% (Reduced)"},
		{"verbose unknown rate", 12, []FormatOption{WithVerbose()}, "12%"},
		{"verbose zero stays exempt", 0, []FormatOption{WithVerbose()}, "Tax Exempt"},
		{"verbose zero as percent", 0, []FormatOption{WithVerbose(), WithZeroAsExempt(false)}, "0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTaxRate(tt.rate, tt.opts...))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "111,000.00", FormatAmount(111000, 2, language.English))
	assert.Equal(t, "105", FormatAmount(104.895, 0, language.English))
	assert.Equal(t, "1,234.5", FormatAmount(1234.5, 1, language.English))
}

