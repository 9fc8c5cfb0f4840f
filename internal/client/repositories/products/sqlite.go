package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Product) error {
	if p.ServerID == "" {
		return errors.New("product without server id")
	}
	query := `INSERT INTO products (server_id, name, brand, category_id, description, last_modified, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) DO UPDATE SET name = excluded.name,
				brand = excluded.brand,
				category_id = excluded.category_id,
				description = excluded.description,
				last_modified = excluded.last_modified,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ServerID, p.Fields.Name, p.Fields.Brand, p.Fields.CategoryID, p.Fields.Description,
		p.LastModified.UnixMilli(), p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

const selectColumns = `server_id, name, brand, category_id, description, last_modified, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var (
		p                       models.Product
		lastModified, updatedAt int64
	)
	if err := row.Scan(&p.ServerID, &p.Fields.Name, &p.Fields.Brand, &p.Fields.CategoryID,
		&p.Fields.Description, &lastModified, &updatedAt); err != nil {
		return nil, err
	}
	p.LastModified = time.UnixMilli(lastModified).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &p, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, serverID string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM products WHERE server_id = ?`, serverID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM products ORDER BY updated_at DESC, server_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select products: %w", err)
	}
	defer rows.Close()

	var result []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, serverID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE server_id = ?`, serverID); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}
