// Package pending persists the three local mutation queues.
//
// # Overview
//
// AddRepository holds products created offline, keyed by a local id.
// UpdateRepository holds staged edits of confirmed products, keyed by server
// id, and a second Put overwrites the staged fields. DeleteRepository holds
// delete tombstones. Each has a SQLite implementation over dbx.DBTX.
//
// # Rejection
//
// Entries stay queued until the reconciler confirms them. A rejected entry is
// kept and flagged with the remote message instead of being dropped, so the
// user can see why it was refused and a later pass may retry it.
//
// Key Types
//
//   - type AddRepository, UpdateRepository, DeleteRepository
//   - type SQLiteAddRepository, SQLiteUpdateRepository, SQLiteDeleteRepository
//
// Typical Usage
//
//	adds := pending.NewSQLiteAddRepository(tx)
//	_ = adds.Put(ctx, &models.PendingAdd{Fields: fields})
//	queued, _ := adds.List(ctx)
//	_ = adds.MarkRejected(ctx, queued[0].LocalID, "name taken")
package pending
