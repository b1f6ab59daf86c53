package lob

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceToTick(t *testing.T) {
	c := NewTickConverter(DefaultTickSize)

	tests := []struct {
		price float64
		tick  int64
	}{
		{10.00, 1000},
		{9.99, 999},
		{0.01, 1},
		{10.005, 1001}, // rounds half away from zero
		{10.004, 1000},
		{123.45, 12345},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.tick, c.PriceToTick(tt.price), "price %v", tt.price)
	}
}

func TestTickToPrice(t *testing.T) {
	c := NewTickConverter(DefaultTickSize)

	assert.Equal(t, 9.99, c.TickToPrice(999))
	assert.Equal(t, 10.0, c.TickToPrice(1000))
	assert.Equal(t, 0.01, c.TickToPrice(1))
}

func TestTickRoundTrip(t *testing.T) {
	c := NewTickConverter(DefaultTickSize)

	// grid prices survive the round trip exactly
	for tick := int64(1); tick < 5000; tick += 7 {
		assert.Equal(t, tick, c.PriceToTick(c.TickToPrice(tick)))
	}
}

func TestCustomTickSize(t *testing.T) {
	c := NewTickConverter(decimal.NewFromFloat(0.05))

	assert.Equal(t, int64(200), c.PriceToTick(10.0))
	assert.Equal(t, 10.0, c.TickToPrice(200))
}

func TestTickConverterFallsBackOnBadSize(t *testing.T) {
	c := NewTickConverter(decimal.Zero)
	assert.True(t, c.TickSize().Equal(DefaultTickSize))

	c = NewTickConverter(decimal.NewFromFloat(-1))
	assert.True(t, c.TickSize().Equal(DefaultTickSize))
}

func TestFloatArtifactsDoNotLeakIntoGrid(t *testing.T) {
	c := NewTickConverter(DefaultTickSize)

	// 0.1+0.2 style float noise must still land on the right tick
	assert.Equal(t, int64(30), c.PriceToTick(0.1+0.2))
}
