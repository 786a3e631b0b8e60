package sqlite

import (
	"context"

	"github.com/smartscale/kiosk/internal/catalog"
	"github.com/smartscale/kiosk/internal/models"
)

// ListProducts returns the full catalog ordered by name.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, image_url, unit_price, category, confidence FROM products ORDER BY name",
	)
	if err != nil {
		return nil, unavailable("list products", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageURL, &p.UnitPrice, &p.Category, &p.Confidence); err != nil {
			return nil, unavailable("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate products", err)
	}
	return products, nil
}

// AddProduct inserts a product, deriving its ID from the name when unset.
func (s *SQLiteStore) AddProduct(ctx context.Context, product models.Product) (models.Product, error) {
	if product.ID == "" {
		product.ID = catalog.Slug(product.Name)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (id, name, image_url, unit_price, category, confidence) VALUES (?, ?, ?, ?, ?, ?)",
		product.ID, product.Name, product.ImageURL, product.UnitPrice, product.Category, product.Confidence,
	)
	if err != nil {
		return models.Product{}, unavailable("add product", err)
	}
	return product, nil
}

// SeedProducts inserts the given products if the catalog is empty.
// Used on first boot so a fresh kiosk recognizes the standard produce set.
func (s *SQLiteStore) SeedProducts(ctx context.Context, products []models.Product) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return unavailable("count products", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range products {
		if _, err := s.AddProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
