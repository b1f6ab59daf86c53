package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config groups all simulation and streaming tunables in one place.
type Config struct {
	// Price process
	StartPrice    float64 `yaml:"start_price"`
	Spread        float64 `yaml:"spread"`
	MinPrice      float64 `yaml:"min_price"`
	MeanReversion float64 `yaml:"mean_reversion"`
	TickSize      float64 `yaml:"tick_size"`

	// Order flow
	OrdersPerTick int     `yaml:"orders_per_tick"`
	MarketRatio   float64 `yaml:"market_ratio"`
	CancelRatio   float64 `yaml:"cancel_ratio"`

	// Randomness
	Seed int64 `yaml:"seed"`

	// Book management
	Replenish          bool `yaml:"replenish"`
	StalePurgeDistance int  `yaml:"stale_purge_distance"`
	StalePurgeInterval int  `yaml:"stale_purge_interval"`
	SeedLevels         int  `yaml:"seed_levels"`
	SeedOrdersPerLevel int  `yaml:"seed_orders_per_level"`

	// Intraday session
	SessionSeconds    int     `yaml:"session_length_s"`
	OvernightGapSigma float64 `yaml:"overnight_gap_sigma"`
	DailyDriftSigma   float64 `yaml:"daily_drift_sigma"`

	// Regime switching. Rows and columns are ordered Calm, Normal, Stress.
	// Each row must sum to 1.
	RegimeMatrix [3][3]float64 `yaml:"regime_matrix"`

	// Validation
	ValidateOrders bool `yaml:"validate_orders"`

	// Streaming
	Depth          int     `yaml:"depth"`
	TargetHz       float64 `yaml:"target_hz"`
	Addr           string  `yaml:"addr"`
	MaxSubscribers int     `yaml:"max_subscribers"`
}

// DefaultConfig returns a config tuned for a liquid small-cap style stream.
func DefaultConfig() Config {
	return Config{
		StartPrice:    10.0,
		Spread:        0.10,
		MinPrice:      1.0,
		MeanReversion: 0.001,
		TickSize:      0.01,

		OrdersPerTick: 12,
		MarketRatio:   0.12,
		CancelRatio:   0.30,

		Seed: 42,

		Replenish:          true,
		StalePurgeDistance: 120,
		StalePurgeInterval: 20,
		SeedLevels:         20,
		SeedOrdersPerLevel: 4,

		SessionSeconds:    23400,
		OvernightGapSigma: 0.010,
		DailyDriftSigma:   0.006,

		RegimeMatrix: DefaultRegimeMatrix,

		ValidateOrders: false,

		Depth:          50,
		TargetHz:       30,
		Addr:           ":8787",
		MaxSubscribers: 64,
	}
}

// LoadConfig reads a yaml file over the defaults. Missing keys keep their
// default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the config for values that would break the simulation.
func (c *Config) Validate() error {
	if c.StartPrice <= 0 {
		return fmt.Errorf("start_price must be positive, got %v", c.StartPrice)
	}
	if c.TickSize <= 0 {
		return fmt.Errorf("tick_size must be positive, got %v", c.TickSize)
	}
	if c.MinPrice <= 0 {
		return fmt.Errorf("min_price must be positive, got %v", c.MinPrice)
	}
	if c.Spread < 0 {
		return fmt.Errorf("spread must not be negative, got %v", c.Spread)
	}
	if c.OrdersPerTick < 1 {
		return fmt.Errorf("orders_per_tick must be at least 1, got %d", c.OrdersPerTick)
	}
	if c.MarketRatio < 0 || c.MarketRatio > 1 {
		return fmt.Errorf("market_ratio must be in [0,1], got %v", c.MarketRatio)
	}
	if c.CancelRatio < 0 || c.CancelRatio > 1 {
		return fmt.Errorf("cancel_ratio must be in [0,1], got %v", c.CancelRatio)
	}
	if c.SessionSeconds < 1 {
		return fmt.Errorf("session_length_s must be at least 1, got %d", c.SessionSeconds)
	}
	if c.Depth < 1 {
		return fmt.Errorf("depth must be at least 1, got %d", c.Depth)
	}
	if c.TargetHz <= 0 {
		return fmt.Errorf("target_hz must be positive, got %v", c.TargetHz)
	}
	if c.MaxSubscribers < 1 {
		return fmt.Errorf("max_subscribers must be at least 1, got %d", c.MaxSubscribers)
	}

	for i, row := range c.RegimeMatrix {
		sum := 0.0
		for _, p := range row {
			if p < 0 {
				return fmt.Errorf("regime_matrix row %d has negative probability", i)
			}
			sum += p
		}
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("regime_matrix row %d sums to %v, want 1", i, sum)
		}
	}

	return nil
}
