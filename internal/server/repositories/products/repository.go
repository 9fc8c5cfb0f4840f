package products

import (
	"context"

	"github.com/dmitrijs2005/productkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, id string) (*models.Product, error)
	GetByClientRef(ctx context.Context, ref string) (*models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Product, error)
}
