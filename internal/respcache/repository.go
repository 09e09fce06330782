package respcache

import "context"

// Repository persists raw entry values per (userID, key).
//
// Get returns (nil, nil) when no row exists.
type Repository interface {
	Get(ctx context.Context, userID, key string) ([]byte, error)
	Set(ctx context.Context, userID, key string, value []byte) error
	Delete(ctx context.Context, userID, key string) error
	Clear(ctx context.Context, userID string) error
	Keys(ctx context.Context, userID string) ([]string, error)
}
