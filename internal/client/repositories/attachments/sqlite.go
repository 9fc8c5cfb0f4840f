package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"
	"github.com/google/uuid"
)

var ErrInvalidOwner = errors.New("attachment owner must be a local or server id")

// ownerColumn maps an identifier kind onto its owner key column.
func ownerColumn(owner models.Identifier) (string, error) {
	switch {
	case owner.IsServer():
		return "entity_id", nil
	case owner.IsLocal():
		return "entity_local_id", nil
	default:
		return "", ErrInvalidOwner
	}
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, a *models.Attachment) error {
	var entityID, entityLocalID sql.NullString
	switch {
	case a.Owner.IsServer():
		entityID = sql.NullString{String: a.Owner.Value, Valid: true}
	case a.Owner.IsLocal():
		entityLocalID = sql.NullString{String: a.Owner.Value, Valid: true}
	default:
		return ErrInvalidOwner
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO attachments (id, entity_id, entity_local_id, entity_type, origin, synced,
				name, content_type, data, url, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, entityID, entityLocalID, string(a.EntityType), string(a.Origin), a.Synced,
		a.Name, a.ContentType, a.Data, a.URL, a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, owner models.Identifier, et models.EntityType) ([]models.Attachment, error) {
	col, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, entity_id, entity_local_id, entity_type, origin, synced,
			name, content_type, data, url, created_at
		FROM attachments WHERE %s = ? AND entity_type = ? ORDER BY created_at, rowid`, col)
	rows, err := r.db.QueryContext(ctx, query, owner.Value, string(et))
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []models.Attachment
	for rows.Next() {
		var (
			a                       models.Attachment
			entityID, entityLocalID sql.NullString
			entityType, origin      string
			createdAt               int64
		)
		if err := rows.Scan(&a.ID, &entityID, &entityLocalID, &entityType, &origin, &a.Synced,
			&a.Name, &a.ContentType, &a.Data, &a.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		if entityID.Valid {
			a.Owner = models.ServerID(entityID.String)
		} else {
			a.Owner = models.LocalID(entityLocalID.String)
		}
		a.EntityType = models.EntityType(entityType)
		a.Origin = models.Origin(origin)
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Rekey(ctx context.Context, from, to models.Identifier, et models.EntityType) (int64, error) {
	fromCol, err := ownerColumn(from)
	if err != nil {
		return 0, err
	}
	if _, err := ownerColumn(to); err != nil {
		return 0, err
	}

	var entityID, entityLocalID sql.NullString
	if to.IsServer() {
		entityID = sql.NullString{String: to.Value, Valid: true}
	} else {
		entityLocalID = sql.NullString{String: to.Value, Valid: true}
	}

	query := fmt.Sprintf(`UPDATE attachments SET entity_id = ?, entity_local_id = ?, synced = 1
		WHERE %s = ? AND entity_type = ?`, fromCol)
	res, err := r.db.ExecContext(ctx, query, entityID, entityLocalID, from.Value, string(et))
	if err != nil {
		return 0, fmt.Errorf("failed to rekey attachments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteByOwner(ctx context.Context, owner models.Identifier, et models.EntityType) (int64, error) {
	col, err := ownerColumn(owner)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM attachments WHERE %s = ? AND entity_type = ?`, col), owner.Value, string(et))
	if err != nil {
		return 0, fmt.Errorf("failed to delete attachments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attachments: %w", err)
	}
	return n, nil
}
