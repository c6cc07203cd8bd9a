package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "1h" or "250ms"; a bare integer is
// taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Engine is the immutable engine configuration. Rates are fractions of
// notional; the funding cap bounds the per-interval rate in both
// directions. A zero-value file loads to the defaults.
type Engine struct {
	TakerFee           float64  `yaml:"taker_fee"`
	MakerRebate        float64  `yaml:"maker_rebate"`
	InitialMargin      float64  `yaml:"initial_margin"`
	MaintenanceMargin  float64  `yaml:"maintenance_margin"`
	LiquidationPenalty float64  `yaml:"liquidation_penalty"`
	EMAWindow          int      `yaml:"ema_window"`
	FundingCap         float64  `yaml:"funding_cap"`
	FundingPeriod      Duration `yaml:"funding_period"`
	TickInterval       Duration `yaml:"tick_interval"`
	MinConfidence      float64  `yaml:"min_confidence"`
	InsuranceSeed      float64  `yaml:"insurance_seed"`
}

func Default() Engine {
	return Engine{
		TakerFee:           0.0005,
		MakerRebate:        0.0002,
		InitialMargin:      0.01,
		MaintenanceMargin:  0.005,
		LiquidationPenalty: 0.002,
		EMAWindow:          60,
		FundingCap:         0.0075,
		FundingPeriod:      Duration(time.Hour),
		TickInterval:       Duration(time.Second),
		MinConfidence:      0.1,
		InsuranceSeed:      0,
	}
}

// Load reads a YAML file over the defaults. Absent fields keep their
// default values.
func Load(path string) (Engine, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Engine) validate() error {
	if c.MaintenanceMargin <= 0 || c.MaintenanceMargin >= 1 {
		return fmt.Errorf("maintenance_margin %v out of (0,1)", c.MaintenanceMargin)
	}
	if c.InitialMargin < c.MaintenanceMargin {
		return fmt.Errorf("initial_margin %v below maintenance_margin %v",
			c.InitialMargin, c.MaintenanceMargin)
	}
	if c.EMAWindow < 1 {
		return fmt.Errorf("ema_window %d must be at least 1", c.EMAWindow)
	}
	if c.FundingCap < 0 {
		return fmt.Errorf("funding_cap %v must not be negative", c.FundingCap)
	}
	if c.FundingPeriod <= 0 {
		return fmt.Errorf("funding_period %v must be positive", c.FundingPeriod.Std())
	}
	return nil
}
