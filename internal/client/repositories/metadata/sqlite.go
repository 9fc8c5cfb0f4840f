package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/dbx"
)

// Timestamps are kept as RFC 3339 text in UTC so they sort and read well
// from the sqlite shell.
const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetTime(ctx context.Context, key string) (time.Time, error) {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT CAST(value AS TEXT) FROM metadata WHERE key = ?`, key).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("read mark %s: %w", key, err)
	case !raw.Valid || raw.String == "":
		return time.Time{}, nil
	}

	t, err := time.Parse(timeLayout, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("mark %s holds %q: %w", key, raw.String, err)
	}
	return t, nil
}

func (r *SQLiteRepository) SetTime(ctx context.Context, key string, t time.Time) error {
	const q = `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := r.db.ExecContext(ctx, q, key, t.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("write mark %s: %w", key, err)
	}
	return nil
}

// Clear forgets key. Clearing an absent key is not an error.
func (r *SQLiteRepository) Clear(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear mark %s: %w", key, err)
	}
	return nil
}
