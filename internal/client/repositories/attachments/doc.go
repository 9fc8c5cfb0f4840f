// Package attachments persists product images in the local store.
//
// # Ownership
//
// A row is owned either by a server id (entity_id) or by a local id
// (entity_local_id), never both; lookups always pair the owner key with the
// entity type. When a pending add is confirmed, Rekey moves its rows from the
// local id onto the new server id and marks them synced.
//
// The attachment id doubles as the image's client reference on the wire, so
// a retried upload of the same row is stored once on the server.
//
// Typical Usage
//
//	repo := attachments.NewSQLiteRepository(tx)
//	_ = repo.Insert(ctx, a)
//	imgs, _ := repo.ListByOwner(ctx, models.LocalID(id), models.EntityProduct)
//	_, _ = repo.Rekey(ctx, models.LocalID(id), models.ServerID(sid), models.EntityProduct)
package attachments
