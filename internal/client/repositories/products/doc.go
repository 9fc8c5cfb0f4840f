// Package products provides the client-side persistence layer for confirmed
// catalog records.
//
// # Overview
//
// The package defines a Repository interface for the main table: products the
// remote side has acknowledged. A SQLite-backed implementation
// (SQLiteRepository) persists them over a dbx.DBTX (either *sql.DB or *sql.Tx).
//
// # Data Model
//
// Every row is keyed by the server identifier and carries the remote
// last-modified time. Rows created offline never land here; they live in the
// pending add queue until the reconciler confirms them, and a pull overwrites
// rows by ServerID.
//
// # Concurrency
//
// Safe for concurrent use over a *sql.DB. Inside a store transaction follow
// normal *sql.Tx scoping rules.
//
// Key Types
//
//   - type Repository        — interface used by services and the reconciler
//   - type SQLiteRepository  — SQLite implementation over dbx.DBTX
//
// Typical Usage
//
//	repo := products.NewSQLiteRepository(tx)
//	_ = repo.Upsert(ctx, p)
//	one, _ := repo.Get(ctx, serverID)
//	all, _ := repo.List(ctx)
//	_ = repo.Delete(ctx, serverID)
//
// See also: internal/client/repositories/pending for unconfirmed changes.
package products
