// Package store opens the local SQLite database and hands out repositories
// bound either to the connection or to a transaction.
//
// Every logical mutation that touches more than one table goes through
// Update so it commits or rolls back as a whole. Code running inside Update
// or View must only use the Repositories it is given; the pool holds a
// single connection and reaching for the outer handle would block.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/productkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/categories"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/pending"
	"github.com/dmitrijs2005/productkeeper/internal/client/repositories/products"
	"github.com/dmitrijs2005/productkeeper/internal/dbx"

	_ "modernc.org/sqlite"
)

// Repositories groups every local table behind one DBTX.
type Repositories struct {
	Products    products.Repository
	Adds        pending.AddRepository
	Updates     pending.UpdateRepository
	Deletes     pending.DeleteRepository
	Attachments attachments.Repository
	Categories  categories.Repository
	Metadata    metadata.Repository
}

// Bind returns SQLite repositories that run on db.
func Bind(db dbx.DBTX) *Repositories {
	return &Repositories{
		Products:    products.NewSQLiteRepository(db),
		Adds:        pending.NewSQLiteAddRepository(db),
		Updates:     pending.NewSQLiteUpdateRepository(db),
		Deletes:     pending.NewSQLiteDeleteRepository(db),
		Attachments: attachments.NewSQLiteRepository(db),
		Categories:  categories.NewSQLiteRepository(db),
		Metadata:    metadata.NewSQLiteRepository(db),
	}
}

type Store struct {
	db *sql.DB
}

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Open opens (creating if needed) the SQLite database at path and migrates
// it to the latest schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?" + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Repos returns repositories bound to the connection pool, for single
// statement reads and writes.
func (s *Store) Repos() *Repositories {
	return Bind(s.db)
}

// Update runs fn in one write transaction.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, Bind(tx))
	})
}

// View runs fn against one consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithReadTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, Bind(tx))
	})
}

// Stats is a snapshot of the local table sizes.
type Stats struct {
	Products       int
	PendingAdds    int
	PendingUpdates int
	PendingDeletes int
	Attachments    int
}

// Pending reports the number of queued mutations.
func (s Stats) Pending() int {
	return s.PendingAdds + s.PendingUpdates + s.PendingDeletes
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.View(ctx, func(ctx context.Context, r *Repositories) error {
		var err error
		if st.Products, err = r.Products.Count(ctx); err != nil {
			return err
		}
		if st.PendingAdds, err = r.Adds.Count(ctx); err != nil {
			return err
		}
		if st.PendingUpdates, err = r.Updates.Count(ctx); err != nil {
			return err
		}
		if st.PendingDeletes, err = r.Deletes.Count(ctx); err != nil {
			return err
		}
		st.Attachments, err = r.Attachments.Count(ctx)
		return err
	})
	return st, err
}
