// Package catalog maps detected item labels onto sellable products.
package catalog

import (
	"strings"

	"github.com/smartscale/kiosk/internal/models"
)

// Defaults configure the product synthesized when a detected label has
// no catalog entry.
type Defaults struct {
	Category   models.Category
	Confidence float64
	ImageURL   string
}

// PlaceholderImageURL is shown for synthesized products that have no
// catalog image.
const PlaceholderImageURL = "https://images.unsplash.com/photo-1560806887-1e4cd0b6cbd6?w=400&h=400&fit=crop"

// DefaultSynthesis matches the detector's behavior for unknown labels.
var DefaultSynthesis = Defaults{
	Category:   models.CategoryFruit,
	Confidence: 0.95,
	ImageURL:   PlaceholderImageURL,
}

// Slug derives a product ID from a display name: lowercased, runs of
// whitespace collapsed to single hyphens.
func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// Resolver answers label lookups against an in-memory snapshot of the
// catalog. The snapshot is loaded once at startup; catalog management is
// not on the hot path.
type Resolver struct {
	byName   map[string]models.Product
	defaults Defaults
}

// NewResolver indexes the given products by lowercased name.
func NewResolver(products []models.Product, defaults Defaults) *Resolver {
	byName := make(map[string]models.Product, len(products))
	for _, p := range products {
		byName[strings.ToLower(p.Name)] = p
	}
	return &Resolver{byName: byName, defaults: defaults}
}

// Resolve returns the catalog product for a detected label, or a
// synthesized product using the label as name, the reading's unit price,
// and the configured defaults when no entry matches.
func (r *Resolver) Resolve(label string, unitPrice float64) models.Product {
	if p, ok := r.byName[strings.ToLower(label)]; ok {
		return p
	}
	return models.Product{
		ID:         Slug(label),
		Name:       label,
		ImageURL:   r.defaults.ImageURL,
		UnitPrice:  unitPrice,
		Category:   r.defaults.Category,
		Confidence: r.defaults.Confidence,
	}
}

// DefaultProducts is the catalog seeded on first boot when the store has
// no products yet.
func DefaultProducts() []models.Product {
	return []models.Product{
		{
			ID:         "red-apple",
			Name:       "Red Apple",
			ImageURL:   "https://images.unsplash.com/photo-1560806887-1e4cd0b6cbd6?w=400&h=400&fit=crop",
			UnitPrice:  3.99,
			Category:   models.CategoryFruit,
			Confidence: 0.95,
		},
		{
			ID:         "banana",
			Name:       "Banana",
			ImageURL:   "https://images.unsplash.com/photo-1571771894821-ce9b6c11b08e?w=400&h=400&fit=crop",
			UnitPrice:  2.49,
			Category:   models.CategoryFruit,
			Confidence: 0.92,
		},
		{
			ID:         "orange",
			Name:       "Orange",
			ImageURL:   "https://images.unsplash.com/photo-1547514701-42782101795e?w=400&h=400&fit=crop",
			UnitPrice:  4.29,
			Category:   models.CategoryFruit,
			Confidence: 0.88,
		},
		{
			ID:         "tomato",
			Name:       "Tomato",
			ImageURL:   "https://images.unsplash.com/photo-1546470427-e5380e2e9c95?w=400&h=400&fit=crop",
			UnitPrice:  5.99,
			Category:   models.CategoryVegetable,
			Confidence: 0.91,
		},
		{
			ID:         "carrot",
			Name:       "Carrot",
			ImageURL:   "https://images.unsplash.com/photo-1445282768818-728615cc910a?w=400&h=400&fit=crop",
			UnitPrice:  2.99,
			Category:   models.CategoryVegetable,
			Confidence: 0.94,
		},
		{
			ID:         "broccoli",
			Name:       "Broccoli",
			ImageURL:   "https://images.unsplash.com/photo-1459411621453-7b03977f4bfc?w=400&h=400&fit=crop",
			UnitPrice:  6.49,
			Category:   models.CategoryVegetable,
			Confidence: 0.89,
		},
	}
}
