// Package taxsettings owns the process-wide tax settings: the built-in
// defaults, overrides from the environment and an optional YAML file, and the
// atomically swapped value handed to every calculation.
package taxsettings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("taxsettings: invalid settings")

// Defaults returns the settings used when nothing else is configured: 11%
// exclusive, rounded half away from zero to two decimal places.
func Defaults() tax.Settings {
	return tax.Settings{
		DefaultRate:             11.0,
		AllowProductOverride:    true,
		AllowCustomerExemption:  true,
		InclusivePricingDefault: false,
		CalculationMethod:       tax.MethodExclusive,
		RoundingMethod:          tax.RoundingRound,
		RoundingPrecision:       tax.DefaultPrecision,
	}
}

// Env is the environment representation of the settings.
type Env struct {
	DefaultRate             float64 `envconfig:"DEFAULT_RATE" default:"11" validate:"gte=0,lte=100"`
	AllowProductOverride    bool    `envconfig:"ALLOW_PRODUCT_OVERRIDE" default:"true"`
	AllowCustomerExemption  bool    `envconfig:"ALLOW_CUSTOMER_EXEMPTION" default:"true"`
	InclusivePricingDefault bool    `envconfig:"INCLUSIVE_PRICING_DEFAULT" default:"false"`
	CalculationMethod       string  `envconfig:"CALCULATION_METHOD" default:"exclusive" validate:"oneof=exclusive inclusive"`
	RoundingMethod          string  `envconfig:"ROUNDING_METHOD" default:"round" validate:"oneof=round floor ceil"`
	RoundingPrecision       int     `envconfig:"ROUNDING_PRECISION" default:"2" validate:"gte=0,lte=8"`
	// File names a YAML document applied over the variables above. It is
	// re-read on every Load, so editing it and reloading changes the settings.
	File string `envconfig:"SETTINGS_FILE"`
}

// File is the YAML settings document. Absent keys keep the value from the
// environment or the defaults.
type File struct {
	DefaultRate             *float64 `yaml:"default_rate"`
	AllowProductOverride    *bool    `yaml:"allow_product_override"`
	AllowCustomerExemption  *bool    `yaml:"allow_customer_exemption"`
	InclusivePricingDefault *bool    `yaml:"inclusive_pricing_default"`
	CalculationMethod       *string  `yaml:"calculation_method"`
	RoundingMethod          *string  `yaml:"rounding_method"`
	RoundingPrecision       *int     `yaml:"rounding_precision"`
}

func (f File) apply(env *Env) {
	if f.DefaultRate != nil {
		env.DefaultRate = *f.DefaultRate
	}
	if f.AllowProductOverride != nil {
		env.AllowProductOverride = *f.AllowProductOverride
	}
	if f.AllowCustomerExemption != nil {
		env.AllowCustomerExemption = *f.AllowCustomerExemption
	}
	if f.InclusivePricingDefault != nil {
		env.InclusivePricingDefault = *f.InclusivePricingDefault
	}
	if f.CalculationMethod != nil {
		env.CalculationMethod = *f.CalculationMethod
	}
	if f.RoundingMethod != nil {
		env.RoundingMethod = *f.RoundingMethod
	}
	if f.RoundingPrecision != nil {
		env.RoundingPrecision = *f.RoundingPrecision
	}
}

// readFile decodes path strictly; unknown keys are rejected. An empty file
// changes nothing.
func readFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("taxsettings: read %s: %w", path, err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, path, err)
	}
	return f, nil
}

// Settings converts the environment values into engine settings.
func (e Env) Settings() tax.Settings {
	return tax.Settings{
		DefaultRate:             e.DefaultRate,
		AllowProductOverride:    e.AllowProductOverride,
		AllowCustomerExemption:  e.AllowCustomerExemption,
		InclusivePricingDefault: e.InclusivePricingDefault,
		CalculationMethod:       tax.Method(strings.ToLower(e.CalculationMethod)),
		RoundingMethod:          tax.RoundingMethod(strings.ToLower(e.RoundingMethod)),
		RoundingPrecision:       e.RoundingPrecision,
	}
}

var validate = validator.New()

// Load reads TAX_* variables, then the file named by TAX_SETTINGS_FILE when
// set, falling back to Defaults for anything unset.
func Load() (tax.Settings, error) {
	var env Env
	if err := envconfig.Process("TAX", &env); err != nil {
		return tax.Settings{}, fmt.Errorf("taxsettings: process env: %w", err)
	}
	if env.File != "" {
		f, err := readFile(env.File)
		if err != nil {
			return tax.Settings{}, err
		}
		f.apply(&env)
	}
	env.CalculationMethod = strings.ToLower(env.CalculationMethod)
	env.RoundingMethod = strings.ToLower(env.RoundingMethod)
	if err := validate.Struct(env); err != nil {
		return tax.Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	settings := env.Settings()
	if err := Validate(settings); err != nil {
		return tax.Settings{}, err
	}
	return settings, nil
}

// Validate checks the engine invariants of s.
func Validate(s tax.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// Store holds the active settings. Readers always observe a complete value;
// updates replace the whole value and never patch fields in place.
type Store struct {
	current atomic.Pointer[tax.Settings]
	load    func() (tax.Settings, error)
}

// NewStore returns a store holding initial. Reload uses Load.
func NewStore(initial tax.Settings) (*Store, error) {
	if err := Validate(initial); err != nil {
		return nil, err
	}
	s := &Store{load: Load}
	s.current.Store(&initial)
	return s, nil
}

// Current returns a copy of the active settings.
func (s *Store) Current() tax.Settings {
	if s == nil {
		return Defaults()
	}
	if cur := s.current.Load(); cur != nil {
		return *cur
	}
	return Defaults()
}

// Replace validates next and swaps it in atomically.
func (s *Store) Replace(next tax.Settings) error {
	if err := Validate(next); err != nil {
		return err
	}
	s.current.Store(&next)
	return nil
}

// Reload runs Load again and swaps the result in. On error the previous
// settings stay active.
func (s *Store) Reload() (tax.Settings, error) {
	next, err := s.load()
	if err != nil {
		return s.Current(), err
	}
	s.current.Store(&next)
	return next, nil
}
