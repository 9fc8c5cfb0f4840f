// Package metadata records bookkeeping timestamps of the local store, such as
// when the last sync pass or pull completed. Keys are free-form; KeyLastSyncAt
// and KeyLastPullAt are the ones the syncer writes.
package metadata
