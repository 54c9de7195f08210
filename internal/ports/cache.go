package ports

import (
	"context"
	"time"
)

// CachedResponse is the payload kept for one cached request target.
// Status 0 replays as 200.
type CachedResponse struct {
	Status      int
	Body        []byte
	ContentType string
}

// ResponseCache stores rendered responses by request key.
// Adapters may be backed by memory or another store; callers treat any error as a miss.
type ResponseCache interface {
	Get(ctx context.Context, key string) (resp CachedResponse, found bool, err error)
	Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error
}
