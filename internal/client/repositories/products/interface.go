package products

import (
	"context"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
)

type Repository interface {
	// Upsert inserts or overwrites a product by ServerID.
	Upsert(ctx context.Context, p *models.Product) error

	// Get returns common.ErrNotFound when no row matches.
	Get(ctx context.Context, serverID string) (*models.Product, error)

	// List returns every product, most recently updated first.
	List(ctx context.Context) ([]models.Product, error)

	// Delete removes a product; deleting an absent row is not an error.
	Delete(ctx context.Context, serverID string) error

	Count(ctx context.Context) (int, error)
}
