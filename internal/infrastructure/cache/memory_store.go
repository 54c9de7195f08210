package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"shelfd/internal/errs"
	"shelfd/internal/ports"
)

var errNonPositiveTTL = errors.New("ttl must be positive")

type entry struct {
	resp      ports.CachedResponse
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded map of cached responses. It is shared by every
// request goroutine and one Sweeper.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[string]entry
}

var _ ports.ResponseCache = (*MemoryStore)(nil)

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// Get returns the payload stored under key while now < expiresAt. The returned
// body is shared with the store and must not be modified.
func (s *MemoryStore) Get(ctx context.Context, key string) (ports.CachedResponse, bool, error) {
	if ctx == nil {
		return ports.CachedResponse{}, false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.CachedResponse{}, false, errs.Wrap(err, "check context")
	}

	now := s.clock.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return ports.CachedResponse{}, false, nil
	}

	if !now.Before(e.expiresAt) {
		s.mu.Lock()
		// A concurrent Set may have refreshed the entry between the two locks.
		if current, ok := s.entries[key]; ok && !now.Before(current.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return ports.CachedResponse{}, false, nil
	}

	return e.resp, true, nil
}

// Set overwrites any entry for key with expiry now+ttl.
func (s *MemoryStore) Set(ctx context.Context, key string, resp ports.CachedResponse, ttl time.Duration) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("key is required")
	}
	if ttl <= 0 {
		return errNonPositiveTTL
	}

	stored := entry{
		resp: ports.CachedResponse{
			Status:      resp.Status,
			Body:        cloneBytes(resp.Body),
			ContentType: resp.ContentType,
		},
		expiresAt: s.clock.Now().Add(ttl),
	}

	s.mu.Lock()
	s.entries[key] = stored
	s.mu.Unlock()
	return nil
}

// DeleteExpired removes every entry with expiresAt <= now and reports how many
// were removed.
func (s *MemoryStore) DeleteExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, including expired ones not yet removed.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
