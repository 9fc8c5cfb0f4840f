package metadata

import (
	"context"
	"time"
)

const (
	KeyLastSyncAt = "last_sync_at"
	KeyLastPullAt = "last_pull_at"
)

type Repository interface {
	// GetTime returns the zero time for an absent key.
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
	Clear(ctx context.Context, key string) error
}
