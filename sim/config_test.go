package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero start price", func(c *Config) { c.StartPrice = 0 }},
		{"negative tick size", func(c *Config) { c.TickSize = -0.01 }},
		{"zero orders per tick", func(c *Config) { c.OrdersPerTick = 0 }},
		{"market ratio above one", func(c *Config) { c.MarketRatio = 1.5 }},
		{"cancel ratio negative", func(c *Config) { c.CancelRatio = -0.1 }},
		{"zero depth", func(c *Config) { c.Depth = 0 }},
		{"zero target hz", func(c *Config) { c.TargetHz = 0 }},
		{"zero subscribers", func(c *Config) { c.MaxSubscribers = 0 }},
		{"regime row not stochastic", func(c *Config) { c.RegimeMatrix[0] = [3]float64{0.5, 0.1, 0.1} }},
		{"regime negative probability", func(c *Config) { c.RegimeMatrix[1] = [3]float64{1.2, -0.2, 0.0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	body := []byte("start_price: 25.0\nseed: 7\norders_per_tick: 4\nsession_length_s: 3600\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 25.0, cfg.StartPrice)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 4, cfg.OrdersPerTick)
	assert.Equal(t, 3600, cfg.SessionSeconds)

	// untouched keys keep defaults
	assert.Equal(t, 0.30, cfg.CancelRatio)
	assert.Equal(t, 50, cfg.Depth)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick_size: 0\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
