package attachments

import (
	"context"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
)

type Repository interface {
	// Insert stores a new attachment, assigning an ID when empty.
	Insert(ctx context.Context, a *models.Attachment) error

	// ListByOwner returns the attachments of one owner in insertion order.
	ListByOwner(ctx context.Context, owner models.Identifier, et models.EntityType) ([]models.Attachment, error)

	// Rekey moves every attachment of from onto to and marks them synced.
	Rekey(ctx context.Context, from, to models.Identifier, et models.EntityType) (int64, error)

	DeleteByOwner(ctx context.Context, owner models.Identifier, et models.EntityType) (int64, error)

	// Delete removes one attachment; an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Count reports the total number of stored attachments.
	Count(ctx context.Context) (int, error)
}
