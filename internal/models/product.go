package models

// Category classifies a catalog product.
type Category string

const (
	CategoryFruit     Category = "fruit"
	CategoryVegetable Category = "vegetable"
)

// Product is a sellable item, either looked up from the catalog or
// synthesized from a detected label when no catalog entry matches.
type Product struct {
	// ID is the slug of the name (lowercased, whitespace replaced
	// with hyphens).
	ID string `json:"id"`

	// Name is the display name, e.g. "Red Apple".
	Name string `json:"name"`

	// ImageURL points at a display image for the kiosk screen.
	ImageURL string `json:"image_url"`

	// UnitPrice is the price per kilogram.
	UnitPrice float64 `json:"unit_price"`

	// Category is fruit or vegetable.
	Category Category `json:"category"`

	// Confidence is the detector's score in [0,1]. Carried for display
	// only; the engine never thresholds on it.
	Confidence float64 `json:"confidence"`
}
