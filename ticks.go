package lob

import "github.com/shopspring/decimal"

// DefaultTickSize is the price quantum used when none is configured.
var DefaultTickSize = decimal.NewFromFloat(0.01)

// TickConverter quantizes real prices onto the integer tick grid.
// All book-internal comparisons use ticks; decimal arithmetic is confined to
// this boundary so float prices never leak rounding into the grid.
type TickConverter struct {
	tickSize decimal.Decimal
}

// NewTickConverter creates a converter for the given tick size.
// A zero or negative tick size falls back to DefaultTickSize.
func NewTickConverter(tickSize decimal.Decimal) TickConverter {
	if tickSize.LessThanOrEqual(decimal.Zero) {
		tickSize = DefaultTickSize
	}
	return TickConverter{tickSize: tickSize}
}

// TickSize returns the configured price quantum.
func (c TickConverter) TickSize() decimal.Decimal {
	return c.tickSize
}

// PriceToTick converts a real price to the nearest integer tick.
func (c TickConverter) PriceToTick(price float64) int64 {
	return decimal.NewFromFloat(price).Div(c.tickSize).Round(0).IntPart()
}

// TickToPrice converts an integer tick back to a real price.
func (c TickConverter) TickToPrice(tick int64) float64 {
	f, _ := c.tickSize.Mul(decimal.NewFromInt(tick)).Float64()
	return f
}
