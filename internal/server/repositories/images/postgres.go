// Package images provides the PostgreSQL-backed repository of product image
// metadata. Image bytes live in object storage under StorageKey.
package images

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/productkeeper/internal/dbx"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
)

// PostgresRepository implements image storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, img *models.Image) error {
	query := `
		INSERT INTO product_images (id, product_id, client_ref, position, name, content_type, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		img.ID, img.ProductID, nullIfEmpty(img.ClientRef), img.Position, img.Name, img.ContentType, img.StorageKey, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// NextPosition returns the position the next image of productID takes.
func (r *PostgresRepository) NextPosition(ctx context.Context, productID string) (int, error) {
	var next int
	query := `SELECT coalesce(max(position) + 1, 0) FROM product_images WHERE product_id=$1`
	if err := r.db.QueryRowContext(ctx, query, productID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to select image position: %w", err)
	}
	return next, nil
}

// ListByProduct returns the images of productID in upload order.
func (r *PostgresRepository) ListByProduct(ctx context.Context, productID string) ([]*models.Image, error) {
	query := `SELECT id, product_id, coalesce(client_ref, ''), position, name, content_type, storage_key, created_at
		FROM product_images WHERE product_id=$1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	return scanImages(rows)
}

// ListAll returns every image ordered by product and position.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Image, error) {
	query := `SELECT id, product_id, coalesce(client_ref, ''), position, name, content_type, storage_key, created_at
		FROM product_images ORDER BY product_id, position`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select images: %w", err)
	}
	return scanImages(rows)
}

func scanImages(rows *sql.Rows) ([]*models.Image, error) {
	defer rows.Close()

	var result []*models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.ProductID, &img.ClientRef, &img.Position, &img.Name, &img.ContentType,
			&img.StorageKey, &img.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
