package pending

import (
	"context"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
)

type AddRepository interface {
	// Put inserts or overwrites an add, assigning a LocalID when empty.
	Put(ctx context.Context, a *models.PendingAdd) error
	Get(ctx context.Context, localID string) (*models.PendingAdd, error)
	// List returns adds in creation order.
	List(ctx context.Context) ([]models.PendingAdd, error)
	Delete(ctx context.Context, localID string) error
	MarkRejected(ctx context.Context, localID, reason string) error
	Count(ctx context.Context) (int, error)
}

type UpdateRepository interface {
	// Put upserts by ServerID; a second Put overwrites the staged fields.
	Put(ctx context.Context, u *models.PendingUpdate) error
	Get(ctx context.Context, serverID string) (*models.PendingUpdate, error)
	List(ctx context.Context) ([]models.PendingUpdate, error)
	Delete(ctx context.Context, serverID string) error
	MarkRejected(ctx context.Context, serverID, reason string) error
	Count(ctx context.Context) (int, error)
}

type DeleteRepository interface {
	Put(ctx context.Context, d *models.PendingDelete) error
	Get(ctx context.Context, serverID string) (*models.PendingDelete, error)
	List(ctx context.Context) ([]models.PendingDelete, error)
	Delete(ctx context.Context, serverID string) error
	MarkRejected(ctx context.Context, serverID, reason string) error
	Count(ctx context.Context) (int, error)
}
