// Package gateway is the client's view of the remote catalog service. Every
// failure is classified as a connectivity problem (retry later), a rejection
// (the request itself is unacceptable) or a not-found answer.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
)

var (
	// ErrConnectivity marks failures worth retrying on the next pass.
	ErrConnectivity = errors.New("remote unreachable")

	// ErrRejected marks requests the remote refused on their merits.
	ErrRejected = errors.New("rejected by remote")
)

// RejectionError carries the remote reason for a refused request.
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected by remote (%s): %s", e.Code, e.Message)
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

// IsRetryable reports whether err leaves the request worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

type CreateRequest struct {
	// LocalID doubles as the idempotency key of the create.
	LocalID string
	Fields  models.Fields
	Actor   models.Actor
	Images  []models.Image
}

type UpdateRequest struct {
	Fields models.Fields
	Actor  models.Actor
	// Images are appended to the stored set.
	Images []models.Image
}

// RemoteProduct is a product as confirmed by the remote side.
type RemoteProduct struct {
	ServerID     string
	Fields       models.Fields
	Images       []models.ImageRef
	LastModified time.Time
	UpdatedAt    time.Time
}

// Canonical converts the remote product into a main-table record.
func (p *RemoteProduct) Canonical() *models.Product {
	return &models.Product{
		ServerID:     p.ServerID,
		Fields:       p.Fields,
		LastModified: p.LastModified,
		UpdatedAt:    p.UpdatedAt,
	}
}

type Gateway interface {
	Create(ctx context.Context, req CreateRequest) (*RemoteProduct, error)
	Update(ctx context.Context, serverID string, req UpdateRequest) (*RemoteProduct, error)
	// Delete returns an error matching common.ErrNotFound when the product
	// is already gone.
	Delete(ctx context.Context, serverID string, actor models.Actor) error
	ListProducts(ctx context.Context) ([]RemoteProduct, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	Ping(ctx context.Context) error
}
