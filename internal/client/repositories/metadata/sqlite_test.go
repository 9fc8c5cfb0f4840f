package metadata

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return NewSQLiteRepository(db), db
}

func TestGetTime_AbsentIsZero(t *testing.T) {
	r, _ := openRepo(t)

	got, err := r.GetTime(context.Background(), KeyLastSyncAt)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestSetTime_OverwritesAndNormalizesToUTC(t *testing.T) {
	r, _ := openRepo(t)
	ctx := context.Background()

	riga := time.FixedZone("EET", 2*60*60)
	first := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	second := time.Date(2025, 3, 2, 12, 0, 0, 500, riga)

	require.NoError(t, r.SetTime(ctx, KeyLastSyncAt, first))
	require.NoError(t, r.SetTime(ctx, KeyLastSyncAt, second))

	got, err := r.GetTime(ctx, KeyLastSyncAt)
	require.NoError(t, err)
	assert.True(t, second.Equal(got))
	assert.Equal(t, time.UTC, got.Location())

	other, err := r.GetTime(ctx, KeyLastPullAt)
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

func TestClear(t *testing.T) {
	r, _ := openRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetTime(ctx, KeyLastPullAt, time.Now()))
	require.NoError(t, r.Clear(ctx, KeyLastPullAt))
	require.NoError(t, r.Clear(ctx, KeyLastPullAt))

	got, err := r.GetTime(ctx, KeyLastPullAt)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestGetTime_CorruptValue(t *testing.T) {
	r, db := openRepo(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, KeyLastPullAt, "yesterday")
	require.NoError(t, err)

	_, err = r.GetTime(ctx, KeyLastPullAt)
	require.ErrorContains(t, err, `mark last_pull_at holds "yesterday"`)
}

func TestErrorsCarryKey(t *testing.T) {
	r, db := openRepo(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.GetTime(ctx, KeyLastSyncAt)
	require.ErrorContains(t, err, "read mark last_sync_at")
	require.ErrorContains(t, r.SetTime(ctx, KeyLastSyncAt, time.Now()), "write mark last_sync_at")
	require.ErrorContains(t, r.Clear(ctx, KeyLastSyncAt), "clear mark last_sync_at")
}
