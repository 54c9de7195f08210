package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"shelfd/internal/infrastructure/cache"
	"shelfd/internal/infrastructure/metrics"
	"shelfd/internal/ports"
)

type countingHandler struct {
	calls  atomic.Int64
	status int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.calls.Add(1)
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "%s #%d", r.URL.RequestURI(), n)
}

func serve(t *testing.T, h http.Handler, method string, target string) *httptest.ResponseRecorder {
	t.Helper()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(method, target, nil))
	return resp
}

func TestCacheHitSkipsHandler(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	m := metrics.New(prometheus.NewRegistry(), "test")
	next := &countingHandler{}
	h := NewResponseCache(store, CacheOptions{CacheErrors: true}, m).Handler(time.Minute)(next)

	first := serve(t, h, http.MethodGet, "/manga/one")
	second := serve(t, h, http.MethodGet, "/manga/one")

	if next.calls.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", next.calls.Load())
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("hit body = %q, want %q", second.Body.String(), first.Body.String())
	}
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Fatalf("X-Cache = %q, want HIT", got)
	}
	if got := second.Header().Get("Content-Type"); got != "text/plain" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultHit)); got != 1 {
		t.Fatalf("hit counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheStores); got != 1 {
		t.Fatalf("store counter = %v, want 1", got)
	}
}

func TestCacheSkipsNonGET(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	next := &countingHandler{}
	h := NewResponseCache(store, CacheOptions{}, nil).Handler(time.Minute)(next)

	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodHead, http.MethodDelete} {
		resp := serve(t, h, method, "/manga/one")
		if got := resp.Header().Get("X-Cache"); got != "" {
			t.Fatalf("%s X-Cache = %q, want none", method, got)
		}
	}
	if next.calls.Load() != 4 {
		t.Fatalf("handler calls = %d, want 4", next.calls.Load())
	}
	if store.Len() != 0 {
		t.Fatalf("store len = %d, want 0", store.Len())
	}
}

func TestCacheKeyIsRawTarget(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	next := &countingHandler{}
	h := NewResponseCache(store, CacheOptions{}, nil).Handler(time.Minute)(next)

	serve(t, h, http.MethodGet, "/manga-list?a=1&b=2")
	serve(t, h, http.MethodGet, "/manga-list?b=2&a=1")
	serve(t, h, http.MethodGet, "/manga-list?a=1&b=2")

	if next.calls.Load() != 2 {
		t.Fatalf("handler calls = %d, want 2 (query order is part of the key)", next.calls.Load())
	}
	if got := CacheKey(httptest.NewRequest(http.MethodGet, "/search?q=a%20b", nil)); got != "GET /search?q=a%20b" {
		t.Fatalf("CacheKey() = %q", got)
	}
}

func TestCacheErrorResponses(t *testing.T) {
	for _, cacheErrors := range []bool{true, false} {
		t.Run(fmt.Sprintf("cacheErrors=%v", cacheErrors), func(t *testing.T) {
			store := cache.NewMemoryStore(clockwork.NewFakeClock())
			next := &countingHandler{status: http.StatusNotFound}
			h := NewResponseCache(store, CacheOptions{CacheErrors: cacheErrors}, nil).Handler(time.Minute)(next)

			serve(t, h, http.MethodGet, "/manga/missing")
			second := serve(t, h, http.MethodGet, "/manga/missing")

			want := int64(2)
			if cacheErrors {
				want = 1
			}
			if next.calls.Load() != want {
				t.Fatalf("handler calls = %d, want %d", next.calls.Load(), want)
			}
			if second.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", second.Code)
			}
		})
	}
}

func TestCacheNeverStoresRedirects(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	h := NewResponseCache(store, CacheOptions{CacheErrors: true}, nil).Handler(time.Minute)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/", http.StatusFound)
		}),
	)

	resp := serve(t, h, http.MethodGet, "/search")
	if resp.Code != http.StatusFound || resp.Header().Get("Location") != "/" {
		t.Fatalf("redirect = %d %q", resp.Code, resp.Header().Get("Location"))
	}
	if store.Len() != 0 {
		t.Fatalf("store len = %d, want 0", store.Len())
	}
}

func TestCacheEntryExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := cache.NewMemoryStore(clock)
	next := &countingHandler{}
	h := NewResponseCache(store, CacheOptions{}, nil).Handler(180 * time.Second)(next)

	serve(t, h, http.MethodGet, "/")
	clock.Advance(179 * time.Second)
	serve(t, h, http.MethodGet, "/")
	if next.calls.Load() != 1 {
		t.Fatalf("handler calls before expiry = %d, want 1", next.calls.Load())
	}

	clock.Advance(time.Second)
	resp := serve(t, h, http.MethodGet, "/")
	if next.calls.Load() != 2 {
		t.Fatalf("handler calls after expiry = %d, want 2", next.calls.Load())
	}
	if resp.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("X-Cache = %q, want MISS", resp.Header().Get("X-Cache"))
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (ports.CachedResponse, bool, error) {
	return ports.CachedResponse{}, false, errors.New("store offline")
}

func (brokenStore) Set(context.Context, string, ports.CachedResponse, time.Duration) error {
	return errors.New("store offline")
}

func TestCacheStoreFailureIsAMiss(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "test")
	next := &countingHandler{}
	h := NewResponseCache(brokenStore{}, CacheOptions{}, m).Handler(time.Minute)(next)

	for i := 0; i < 2; i++ {
		resp := serve(t, h, http.MethodGet, "/genres")
		if resp.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.Code)
		}
	}
	if next.calls.Load() != 2 {
		t.Fatalf("handler calls = %d, want 2", next.calls.Load())
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultError)); got != 2 {
		t.Fatalf("error counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheStores); got != 0 {
		t.Fatalf("store counter = %v, want 0", got)
	}
}

func TestCacheConcurrentMissesAreSafe(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	next := &countingHandler{}
	h := NewResponseCache(store, CacheOptions{}, nil).Handler(time.Minute)(next)

	const workers = 16
	var wg sync.WaitGroup
	codes := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = serve(t, h, http.MethodGet, "/read/one/ch-1").Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Fatalf("worker %d status = %d", i, code)
		}
	}
	if calls := next.calls.Load(); calls < 1 || calls > workers {
		t.Fatalf("handler calls = %d, want 1..%d", calls, workers)
	}
	if _, found, err := store.Get(context.Background(), "GET /read/one/ch-1"); err != nil || !found {
		t.Fatalf("store entry found = %v, err = %v", found, err)
	}
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		_, _ = w.Write([]byte("page"))
	})
	h := NewResponseCache(store, CacheOptions{Coalesce: true}, nil).Handler(time.Minute)(next)

	const workers = 8
	var wg sync.WaitGroup
	bodies := make([]string, workers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		bodies[0] = serve(t, h, http.MethodGet, "/").Body.String()
	}()
	<-started
	for i := 1; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bodies[i] = serve(t, h, http.MethodGet, "/").Body.String()
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", calls.Load())
	}
	for i, body := range bodies {
		if body != "page" {
			t.Fatalf("worker %d body = %q", i, body)
		}
	}
}

func TestCacheSharedRenderOutlivesLeaderCancel(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-r.Context().Done():
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("aborted"))
		case <-release:
			_, _ = w.Write([]byte("page"))
		}
	})
	h := NewResponseCache(store, CacheOptions{Coalesce: true}, nil).Handler(time.Minute)(next)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		req := httptest.NewRequest(http.MethodGet, "/genres", nil).WithContext(leaderCtx)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()
	<-started

	var follower *httptest.ResponseRecorder
	go func() {
		defer wg.Done()
		follower = serve(t, h, http.MethodGet, "/genres")
	}()
	time.Sleep(50 * time.Millisecond)
	cancelLeader()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", calls.Load())
	}
	if follower.Code != http.StatusOK || follower.Body.String() != "page" {
		t.Fatalf("follower = %d %q, want 200 page", follower.Code, follower.Body.String())
	}
	if got := follower.Header().Get("X-Cache"); got != "SHARED" {
		t.Fatalf("follower X-Cache = %q, want SHARED", got)
	}
	if _, found, err := store.Get(context.Background(), "GET /genres"); err != nil || !found {
		t.Fatalf("store entry found = %v, err = %v", found, err)
	}
}

func TestCacheSharedRenderIsBounded(t *testing.T) {
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	var hasDeadline atomic.Bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		hasDeadline.Store(ok)
		_, _ = w.Write([]byte("page"))
	})
	h := NewResponseCache(store, CacheOptions{Coalesce: true, RenderTimeout: time.Second}, nil).Handler(time.Minute)(next)

	serve(t, h, http.MethodGet, "/")
	if !hasDeadline.Load() {
		t.Fatalf("shared render ran without a deadline")
	}
}

func TestCacheCanceledClientIsAPlainMiss(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "test")
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	next := &countingHandler{}
	h := NewResponseCache(store, CacheOptions{CacheErrors: true}, m).Handler(time.Minute)(next)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/genres", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultError)); got != 0 {
		t.Fatalf("error counter = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(metrics.ResultMiss)); got != 1 {
		t.Fatalf("miss counter = %v, want 1", got)
	}
	if store.Len() != 0 {
		t.Fatalf("store len = %d, want 0", store.Len())
	}
}
