// Package categories provides read access to the category reference table.
package categories

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/productkeeper/internal/dbx"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns every category ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT id, name, description, last_modified, updated_at FROM categories ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.LastModified, &c.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
