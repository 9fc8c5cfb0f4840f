package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"
	"github.com/google/uuid"
)

type scanner interface{ Scan(...any) error }

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func markRejected(ctx context.Context, db dbx.DBTX, table, keyColumn, key, reason string) error {
	query := fmt.Sprintf(`UPDATE %s SET rejected = 1, last_error = ? WHERE %s = ?`, table, keyColumn)
	res, err := db.ExecContext(ctx, query, reason, key)
	if err != nil {
		return fmt.Errorf("failed to flag %s entry: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func count(ctx context.Context, db dbx.DBTX, table string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// SQLiteAddRepository stores PendingAdd rows in pending_adds.
type SQLiteAddRepository struct {
	db dbx.DBTX
}

func NewSQLiteAddRepository(db dbx.DBTX) *SQLiteAddRepository {
	return &SQLiteAddRepository{db: db}
}

func (r *SQLiteAddRepository) Put(ctx context.Context, a *models.PendingAdd) error {
	if a.LocalID == "" {
		a.LocalID = uuid.NewString()
	}
	query := `INSERT INTO pending_adds (local_id, name, brand, category_id, description, actor_role, actor_id,
				created_at, last_modified, updated_at, rejected, last_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(local_id) DO UPDATE SET name = excluded.name,
				brand = excluded.brand,
				category_id = excluded.category_id,
				description = excluded.description,
				actor_role = excluded.actor_role,
				actor_id = excluded.actor_id,
				last_modified = excluded.last_modified,
				updated_at = excluded.updated_at,
				rejected = excluded.rejected,
				last_error = excluded.last_error
	`
	_, err := r.db.ExecContext(ctx, query,
		a.LocalID, a.Fields.Name, a.Fields.Brand, a.Fields.CategoryID, a.Fields.Description,
		string(a.Actor.Role), a.Actor.ID,
		millis(a.CreatedAt), millis(a.LastModified), millis(a.UpdatedAt), a.Rejected, a.LastError)
	if err != nil {
		return fmt.Errorf("failed to upsert pending add: %w", err)
	}
	return nil
}

const addColumns = `local_id, name, brand, category_id, description, actor_role, actor_id,
	created_at, last_modified, updated_at, rejected, last_error`

func scanAdd(row scanner) (*models.PendingAdd, error) {
	var (
		a                                  models.PendingAdd
		role                               string
		createdAt, lastModified, updatedAt int64
	)
	if err := row.Scan(&a.LocalID, &a.Fields.Name, &a.Fields.Brand, &a.Fields.CategoryID, &a.Fields.Description,
		&role, &a.Actor.ID, &createdAt, &lastModified, &updatedAt, &a.Rejected, &a.LastError); err != nil {
		return nil, err
	}
	a.Actor.Role = models.Role(role)
	a.CreatedAt = fromMillis(createdAt)
	a.LastModified = fromMillis(lastModified)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}

func (r *SQLiteAddRepository) Get(ctx context.Context, localID string) (*models.PendingAdd, error) {
	a, err := scanAdd(r.db.QueryRowContext(ctx, `SELECT `+addColumns+` FROM pending_adds WHERE local_id = ?`, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending add: %w", err)
	}
	return a, nil
}

func (r *SQLiteAddRepository) List(ctx context.Context) ([]models.PendingAdd, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+addColumns+` FROM pending_adds ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending adds: %w", err)
	}
	defer rows.Close()

	var result []models.PendingAdd
	for rows.Next() {
		a, err := scanAdd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending add: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteAddRepository) Delete(ctx context.Context, localID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_adds WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete pending add: %w", err)
	}
	return nil
}

func (r *SQLiteAddRepository) MarkRejected(ctx context.Context, localID, reason string) error {
	return markRejected(ctx, r.db, "pending_adds", "local_id", localID, reason)
}

func (r *SQLiteAddRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, "pending_adds")
}

// SQLiteUpdateRepository stores PendingUpdate rows in pending_updates.
type SQLiteUpdateRepository struct {
	db dbx.DBTX
}

func NewSQLiteUpdateRepository(db dbx.DBTX) *SQLiteUpdateRepository {
	return &SQLiteUpdateRepository{db: db}
}

func (r *SQLiteUpdateRepository) Put(ctx context.Context, u *models.PendingUpdate) error {
	if u.ServerID == "" {
		return errors.New("pending update without server id")
	}
	query := `INSERT INTO pending_updates (server_id, name, brand, category_id, description, actor_role, actor_id,
				last_modified, updated_at, rejected, last_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) DO UPDATE SET name = excluded.name,
				brand = excluded.brand,
				category_id = excluded.category_id,
				description = excluded.description,
				actor_role = excluded.actor_role,
				actor_id = excluded.actor_id,
				last_modified = excluded.last_modified,
				updated_at = excluded.updated_at,
				rejected = excluded.rejected,
				last_error = excluded.last_error
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ServerID, u.Fields.Name, u.Fields.Brand, u.Fields.CategoryID, u.Fields.Description,
		string(u.Actor.Role), u.Actor.ID, millis(u.LastModified), millis(u.UpdatedAt), u.Rejected, u.LastError)
	if err != nil {
		return fmt.Errorf("failed to upsert pending update: %w", err)
	}
	return nil
}

const updateColumns = `server_id, name, brand, category_id, description, actor_role, actor_id,
	last_modified, updated_at, rejected, last_error`

func scanUpdate(row scanner) (*models.PendingUpdate, error) {
	var (
		u                       models.PendingUpdate
		role                    string
		lastModified, updatedAt int64
	)
	if err := row.Scan(&u.ServerID, &u.Fields.Name, &u.Fields.Brand, &u.Fields.CategoryID, &u.Fields.Description,
		&role, &u.Actor.ID, &lastModified, &updatedAt, &u.Rejected, &u.LastError); err != nil {
		return nil, err
	}
	u.Actor.Role = models.Role(role)
	u.LastModified = fromMillis(lastModified)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func (r *SQLiteUpdateRepository) Get(ctx context.Context, serverID string) (*models.PendingUpdate, error) {
	u, err := scanUpdate(r.db.QueryRowContext(ctx, `SELECT `+updateColumns+` FROM pending_updates WHERE server_id = ?`, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending update: %w", err)
	}
	return u, nil
}

func (r *SQLiteUpdateRepository) List(ctx context.Context) ([]models.PendingUpdate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+updateColumns+` FROM pending_updates ORDER BY updated_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending updates: %w", err)
	}
	defer rows.Close()

	var result []models.PendingUpdate
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending update: %w", err)
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteUpdateRepository) Delete(ctx context.Context, serverID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_updates WHERE server_id = ?`, serverID); err != nil {
		return fmt.Errorf("failed to delete pending update: %w", err)
	}
	return nil
}

func (r *SQLiteUpdateRepository) MarkRejected(ctx context.Context, serverID, reason string) error {
	return markRejected(ctx, r.db, "pending_updates", "server_id", serverID, reason)
}

func (r *SQLiteUpdateRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, "pending_updates")
}

// SQLiteDeleteRepository stores tombstones in pending_deletes.
type SQLiteDeleteRepository struct {
	db dbx.DBTX
}

func NewSQLiteDeleteRepository(db dbx.DBTX) *SQLiteDeleteRepository {
	return &SQLiteDeleteRepository{db: db}
}

func (r *SQLiteDeleteRepository) Put(ctx context.Context, d *models.PendingDelete) error {
	if d.ServerID == "" {
		return errors.New("pending delete without server id")
	}
	query := `INSERT INTO pending_deletes (server_id, actor_role, actor_id, deleted_at, rejected, last_error)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(server_id) DO UPDATE SET actor_role = excluded.actor_role,
				actor_id = excluded.actor_id,
				deleted_at = excluded.deleted_at,
				rejected = excluded.rejected,
				last_error = excluded.last_error
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ServerID, string(d.Actor.Role), d.Actor.ID, millis(d.DeletedAt), d.Rejected, d.LastError)
	if err != nil {
		return fmt.Errorf("failed to upsert pending delete: %w", err)
	}
	return nil
}

const deleteColumns = `server_id, actor_role, actor_id, deleted_at, rejected, last_error`

func scanDelete(row scanner) (*models.PendingDelete, error) {
	var (
		d         models.PendingDelete
		role      string
		deletedAt int64
	)
	if err := row.Scan(&d.ServerID, &role, &d.Actor.ID, &deletedAt, &d.Rejected, &d.LastError); err != nil {
		return nil, err
	}
	d.Actor.Role = models.Role(role)
	d.DeletedAt = fromMillis(deletedAt)
	return &d, nil
}

func (r *SQLiteDeleteRepository) Get(ctx context.Context, serverID string) (*models.PendingDelete, error) {
	d, err := scanDelete(r.db.QueryRowContext(ctx, `SELECT `+deleteColumns+` FROM pending_deletes WHERE server_id = ?`, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending delete: %w", err)
	}
	return d, nil
}

func (r *SQLiteDeleteRepository) List(ctx context.Context) ([]models.PendingDelete, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deleteColumns+` FROM pending_deletes ORDER BY deleted_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending deletes: %w", err)
	}
	defer rows.Close()

	var result []models.PendingDelete
	for rows.Next() {
		d, err := scanDelete(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending delete: %w", err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteDeleteRepository) Delete(ctx context.Context, serverID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_deletes WHERE server_id = ?`, serverID); err != nil {
		return fmt.Errorf("failed to delete tombstone: %w", err)
	}
	return nil
}

func (r *SQLiteDeleteRepository) MarkRejected(ctx context.Context, serverID, reason string) error {
	return markRejected(ctx, r.db, "pending_deletes", "server_id", serverID, reason)
}

func (r *SQLiteDeleteRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.db, "pending_deletes")
}
