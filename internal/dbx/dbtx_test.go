package dbx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE products (id TEXT PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countProducts(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO products(id, name) VALUES ('p1', 'Widget')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countProducts(t, db))
}

func TestWithTx_RollsBackEveryStatementOnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO products(id, name) VALUES ('p1', 'Widget')`)
		require.NoError(t, e)
		_, e = tx.ExecContext(ctx, `INSERT INTO products(id, name) VALUES ('p2', 'Gadget')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.Equal(t, 0, countProducts(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countProducts(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO products(id, name) VALUES ('p1', 'Widget')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err)
}

func TestWithReadTx_SeesDataAndPropagatesError(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO products(id, name) VALUES ('p1', 'Widget')`)
	require.NoError(t, err)

	var name string
	err = WithReadTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		return tx.QueryRowContext(ctx, `SELECT name FROM products WHERE id = 'p1'`).Scan(&name)
	})
	require.NoError(t, err)
	require.Equal(t, "Widget", name)

	sentinel := errors.New("read failed")
	err = WithReadTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
}
