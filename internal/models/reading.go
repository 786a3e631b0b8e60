package models

// Reading is a single raw sample delivered by the scale bridge.
// Readings arrive asynchronously, unordered, and possibly duplicated;
// the reconcile package decides which ones are admissible.
type Reading struct {
	// Weight in kilograms. Zero means the item has not settled on the
	// platter yet (or nothing is on it).
	Weight float64

	// Label is the detected item name. May carry the bridge's "no item"
	// sentinel, which must never be treated as a product name.
	Label string

	// UnitPrice is the per-kilogram price reported alongside the label.
	UnitPrice float64

	// CapturedAtMs is when the bridge captured the sample, Unix
	// milliseconds. Bridges that report seconds are normalized at the
	// feed boundary before a Reading is constructed.
	CapturedAtMs int64
}
