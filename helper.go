package lob

// DepthChange represents a change in aggregated depth at one price level.
type DepthChange struct {
	Side      Side
	PriceTick int64
	SizeDiff  int64
}

// CalculateDepthChange maps an L3 event to the depth delta it implies.
// Note: for Execute events the affected side is the maker's side, which is
// the opposite of the event's (aggressor) side.
func CalculateDepthChange(e *Event) DepthChange {
	switch e.Type {
	case EventAdd:
		return DepthChange{
			Side:      e.Side,
			PriceTick: e.PriceTick,
			SizeDiff:  int64(e.Quantity),
		}
	case EventCancel:
		return DepthChange{
			Side:      e.Side,
			PriceTick: e.PriceTick,
			SizeDiff:  -int64(e.Quantity),
		}
	case EventExecute:
		return DepthChange{
			Side:      e.Side.Opposite(),
			PriceTick: e.PriceTick,
			SizeDiff:  -int64(e.Quantity),
		}
	}

	return DepthChange{}
}
