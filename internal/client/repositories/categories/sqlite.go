package categories

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"
)

type Repository interface {
	// ReplaceAll swaps the cached set for cats. Run it inside a transaction.
	ReplaceAll(ctx context.Context, cats []models.Category) error
	// List returns categories ordered by name.
	List(ctx context.Context) ([]models.Category, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, cats []models.Category) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	query := `INSERT INTO categories (id, name, description, last_modified, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description,
			last_modified = excluded.last_modified, updated_at = excluded.updated_at`
	for _, c := range cats {
		_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Description, c.LastModified.UnixMilli(), c.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, last_modified, updated_at FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []models.Category
	for rows.Next() {
		var (
			c                       models.Category
			lastModified, updatedAt int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &lastModified, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.LastModified = time.UnixMilli(lastModified).UTC()
		c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
