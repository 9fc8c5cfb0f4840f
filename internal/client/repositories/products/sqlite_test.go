package products

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "products.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func TestUpsert_InsertThenOverwrite(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	ts := time.UnixMilli(1_700_000_000_000).UTC()

	p := &models.Product{
		ServerID:     "s1",
		Fields:       models.Fields{Name: "Widget", Brand: "Acme", CategoryID: "c1", Description: "blue"},
		LastModified: ts,
		UpdatedAt:    ts,
	}
	require.NoError(t, r.Upsert(ctx, p))

	got, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.Fields.Name = "Widget Pro"
	p.UpdatedAt = ts.Add(time.Minute)
	require.NoError(t, r.Upsert(ctx, p))

	got, err = r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Widget Pro", got.Fields.Name)
	assert.Equal(t, ts.Add(time.Minute), got.UpdatedAt)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsert_RequiresServerID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	require.Error(t, r.Upsert(context.Background(), &models.Product{Fields: models.Fields{Name: "x"}}))
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	_, err := r.Get(context.Background(), "absent")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000).UTC()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Upsert(ctx, &models.Product{
			ServerID:  id,
			Fields:    models.Fields{Name: id},
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ServerID, got[1].ServerID, got[2].ServerID})
}

func TestDelete_IsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.Product{ServerID: "x", Fields: models.Fields{Name: "x"}}))
	require.NoError(t, r.Delete(ctx, "x"))
	require.NoError(t, r.Delete(ctx, "x"))

	_, err := r.Get(ctx, "x")
	require.ErrorIs(t, err, common.ErrNotFound)
}
