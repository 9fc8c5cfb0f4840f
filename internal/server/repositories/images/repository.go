package images

import (
	"context"

	"github.com/dmitrijs2005/productkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, img *models.Image) error
	ListByProduct(ctx context.Context, productID string) ([]*models.Image, error)
	ListAll(ctx context.Context) ([]*models.Image, error)
	NextPosition(ctx context.Context, productID string) (int, error)
}
