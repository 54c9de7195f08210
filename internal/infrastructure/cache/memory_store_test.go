package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"shelfd/internal/ports"
)

func page(body string) ports.CachedResponse {
	return ports.CachedResponse{Body: []byte(body), ContentType: "application/json"}
}

func TestMemoryStoreTTLBoundary(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	if err := store.Set(ctx, "GET /", page("A"), 60*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(30 * time.Second)
	got, found, err := store.Get(ctx, "GET /")
	if err != nil || !found {
		t.Fatalf("Get(t0+30s) found=%v err=%v, want hit", found, err)
	}
	if string(got.Body) != "A" {
		t.Fatalf("Get(t0+30s) body = %q, want A", got.Body)
	}

	clock.Advance(30*time.Second - time.Nanosecond)
	if _, found, _ := store.Get(ctx, "GET /"); !found {
		t.Fatal("Get(t0+T-1ns) expected hit")
	}

	clock.Advance(time.Nanosecond)
	if _, found, _ := store.Get(ctx, "GET /"); found {
		t.Fatal("Get(t0+T) expected miss: entries are visible only while now < expiresAt")
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d after lazy expiry, want 0", store.Len())
	}
}

func TestMemoryStoreSetOverwritesAndRestartsTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	_ = store.Set(ctx, "k", page("old"), time.Minute)
	clock.Advance(50 * time.Second)
	_ = store.Set(ctx, "k", page("new"), time.Minute)
	clock.Advance(50 * time.Second)

	got, found, err := store.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Get() found=%v err=%v, want hit", found, err)
	}
	if string(got.Body) != "new" {
		t.Fatalf("Get() body = %q, want new", got.Body)
	}
}

func TestMemoryStoreCopiesBodyOnSet(t *testing.T) {
	store := NewMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()

	body := []byte("abc")
	_ = store.Set(ctx, "k", ports.CachedResponse{Body: body}, time.Minute)
	body[0] = 'z'

	got, _, _ := store.Get(ctx, "k")
	if string(got.Body) != "abc" {
		t.Fatalf("stored body = %q, want abc", got.Body)
	}
}

func TestMemoryStoreRejectsInvalidInput(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	if err := store.Set(ctx, "", page("x"), time.Minute); err == nil {
		t.Fatal("Set() expected error for empty key")
	}
	if err := store.Set(ctx, "k", page("x"), 0); err == nil {
		t.Fatal("Set() expected error for zero ttl")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := store.Get(canceled, "k"); err == nil {
		t.Fatal("Get() expected error for canceled context")
	}
}

func TestMemoryStoreDeleteExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	_ = store.Set(ctx, "short", page("s"), time.Minute)
	_ = store.Set(ctx, "exact", page("e"), 2*time.Minute)
	_ = store.Set(ctx, "long", page("l"), time.Hour)

	removed := store.DeleteExpired(clock.Now().Add(2 * time.Minute))
	if removed != 2 {
		t.Fatalf("DeleteExpired() removed = %d, want 2", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	if _, found, _ := store.Get(ctx, "long"); !found {
		t.Fatal("long-lived entry should survive")
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("GET /page/%d", i%4)
			for j := 0; j < 200; j++ {
				_ = store.Set(ctx, key, page(key), time.Minute)
				if got, found, _ := store.Get(ctx, key); found && string(got.Body) != key {
					t.Errorf("Get(%s) = %q", key, got.Body)
					return
				}
				store.DeleteExpired(time.Now())
			}
		}(i)
	}
	wg.Wait()
}
