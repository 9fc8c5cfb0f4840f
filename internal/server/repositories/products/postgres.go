// Package products provides the PostgreSQL-backed repository of catalog
// products.
package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"
	"github.com/dmitrijs2005/productkeeper/internal/server/models"
)

// PostgresRepository implements product storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `id, coalesce(client_ref, ''), name, brand, category_id, description,
	created_by_role, created_by_id, modified_by_role, modified_by_id,
	created_at, last_modified, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.ClientRef, &p.Name, &p.Brand, &p.CategoryID, &p.Description,
		&p.CreatedByRole, &p.CreatedByID, &p.ModifiedByRole, &p.ModifiedByID,
		&p.CreatedAt, &p.LastModified, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Insert stores a new product. An empty ClientRef is stored as NULL so the
// unique constraint only applies to products created by a client.
func (r *PostgresRepository) Insert(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, client_ref, name, brand, category_id, description,
			created_by_role, created_by_id, modified_by_role, modified_by_id,
			created_at, last_modified, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, nullIfEmpty(p.ClientRef), p.Name, p.Brand, p.CategoryID, p.Description,
		p.CreatedByRole, p.CreatedByID, p.ModifiedByRole, p.ModifiedByID,
		p.CreatedAt, p.LastModified, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id=$1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByClientRef(ctx context.Context, ref string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE client_ref=$1`
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select product: %w", err)
	}
	return p, nil
}

// Update overwrites the editable fields and modification stamps of p.ID.
// Returns common.ErrNotFound when no such product exists.
func (r *PostgresRepository) Update(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET
			name = $2,
			brand = $3,
			category_id = $4,
			description = $5,
			modified_by_role = $6,
			modified_by_id = $7,
			last_modified = $8,
			updated_at = $9
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Brand, p.CategoryID, p.Description,
		p.ModifiedByRole, p.ModifiedByID, p.LastModified, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// Delete removes the product; its images go with it through the foreign key.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// List returns every product, most recently updated first.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY updated_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select products: %w", err)
	}
	defer rows.Close()

	var result []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
