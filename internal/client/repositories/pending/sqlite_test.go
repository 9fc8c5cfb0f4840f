package pending

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
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "pending.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

var ts = time.UnixMilli(1_700_000_000_000).UTC()

func TestAdds_PutAssignsLocalIDAndRoundTrips(t *testing.T) {
	r := NewSQLiteAddRepository(setupDB(t))
	ctx := context.Background()

	a := &models.PendingAdd{
		Fields:       models.Fields{Name: "Widget", Brand: "Acme"},
		Actor:        models.Actor{Role: models.RoleEmployee, ID: "e1"},
		CreatedAt:    ts,
		LastModified: ts,
		UpdatedAt:    ts,
	}
	require.NoError(t, r.Put(ctx, a))
	require.NotEmpty(t, a.LocalID)

	got, err := r.Get(ctx, a.LocalID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestAdds_ListInCreationOrder(t *testing.T) {
	r := NewSQLiteAddRepository(setupDB(t))
	ctx := context.Background()

	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, r.Put(ctx, &models.PendingAdd{
			LocalID:   name,
			Fields:    models.Fields{Name: name},
			CreatedAt: ts.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].LocalID)
	assert.Equal(t, "third", got[2].LocalID)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAdds_MarkRejectedAndRestageClearsFlag(t *testing.T) {
	r := NewSQLiteAddRepository(setupDB(t))
	ctx := context.Background()

	a := &models.PendingAdd{LocalID: "l1", Fields: models.Fields{Name: "Widget"}}
	require.NoError(t, r.Put(ctx, a))
	require.NoError(t, r.MarkRejected(ctx, "l1", "name taken"))

	got, err := r.Get(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, got.Rejected)
	assert.Equal(t, "name taken", got.LastError)

	got.Rejected = false
	got.LastError = ""
	got.Fields.Name = "Widget 2"
	require.NoError(t, r.Put(ctx, got))

	got, err = r.Get(ctx, "l1")
	require.NoError(t, err)
	assert.False(t, got.Rejected)
	assert.Equal(t, "Widget 2", got.Fields.Name)

	require.ErrorIs(t, r.MarkRejected(ctx, "absent", "x"), common.ErrNotFound)
}

func TestAdds_DeleteAndNotFound(t *testing.T) {
	r := NewSQLiteAddRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, &models.PendingAdd{LocalID: "l1", Fields: models.Fields{Name: "x"}}))
	require.NoError(t, r.Delete(ctx, "l1"))

	_, err := r.Get(ctx, "l1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdates_SecondPutOverwrites(t *testing.T) {
	r := NewSQLiteUpdateRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, &models.PendingUpdate{ServerID: "s1", Fields: models.Fields{Name: "A"}, UpdatedAt: ts}))
	require.NoError(t, r.Put(ctx, &models.PendingUpdate{ServerID: "s1", Fields: models.Fields{Name: "B"}, UpdatedAt: ts}))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Fields.Name)

	require.NoError(t, r.MarkRejected(ctx, "s1", "invalid category"))
	got, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Rejected)

	require.NoError(t, r.Delete(ctx, "s1"))
	_, err = r.Get(ctx, "s1")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.Error(t, r.Put(ctx, &models.PendingUpdate{Fields: models.Fields{Name: "no id"}}))
}

func TestDeletes_Tombstones(t *testing.T) {
	r := NewSQLiteDeleteRepository(setupDB(t))
	ctx := context.Background()

	d := &models.PendingDelete{ServerID: "s1", Actor: models.Actor{Role: models.RoleAdmin, ID: "a1"}, DeletedAt: ts}
	require.NoError(t, r.Put(ctx, d))
	require.NoError(t, r.Put(ctx, d))

	got, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, d, got)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, r.MarkRejected(ctx, "s1", "forbidden"))
	require.NoError(t, r.Delete(ctx, "s1"))
	_, err = r.Get(ctx, "s1")
	require.ErrorIs(t, err, common.ErrNotFound)
}
