package httpapi

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
	"shelfd/internal/infrastructure/metrics"
	"shelfd/internal/ports"
)

const cacheHeader = "X-Cache"

type CacheOptions struct {
	// CacheErrors stores non-2xx responses too. Redirects are never stored.
	CacheErrors bool
	// Coalesce lets concurrent misses on one key share a single handler run.
	// The shared run is detached from the request that started it.
	Coalesce bool
	// RenderTimeout bounds a shared run. Zero leaves it unbounded.
	RenderTimeout time.Duration
}

// ResponseCache is the per-route read cache. Only GET is cached; the key is the
// method plus the raw request target, so query order and encoding matter.
type ResponseCache struct {
	store   ports.ResponseCache
	opts    CacheOptions
	metrics *metrics.Metrics
	group   singleflight.Group
}

func NewResponseCache(store ports.ResponseCache, opts CacheOptions, m *metrics.Metrics) *ResponseCache {
	return &ResponseCache{store: store, opts: opts, metrics: m}
}

// CacheKey is "<method> <raw request target>".
func CacheKey(r *http.Request) string {
	target := r.RequestURI
	if target == "" {
		target = r.URL.RequestURI()
	}
	return r.Method + " " + target
}

// Handler caches responses of next for ttl. A hit writes the stored response
// and never calls next.
func (c *ResponseCache) Handler(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil || c.store == nil || ttl <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				c.metrics.CacheLookup(metrics.ResultBypass)
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := CacheKey(r)

			cached, found, err := c.store.Get(ctx, key)
			if err != nil && ctx.Err() == nil {
				c.metrics.CacheLookup(metrics.ResultError)
				logging.Warn(ctx, "response cache read failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
			}
			if err == nil && found {
				c.metrics.CacheLookup(metrics.ResultHit)
				replay(w, cached, "HIT")
				return
			}

			if !c.opts.Coalesce {
				c.metrics.CacheLookup(metrics.ResultMiss)
				rec := c.render(next, r, key, ttl)
				rec.flushTo(w, "MISS")
				return
			}

			v, _, shared := c.group.Do(key, func() (any, error) {
				renderCtx, cancel := c.sharedContext(ctx)
				defer cancel()
				return c.render(next, r.WithContext(renderCtx), key, ttl), nil
			})
			rec := v.(*bufferedResponse)
			if shared {
				c.metrics.CacheLookup(metrics.ResultShared)
				rec.flushTo(w, "SHARED")
				return
			}
			c.metrics.CacheLookup(metrics.ResultMiss)
			rec.flushTo(w, "MISS")
		})
	}
}

// sharedContext keeps the request's values but drops its cancellation.
func (c *ResponseCache) sharedContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if c.opts.RenderTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.RenderTimeout)
	}
	return context.WithCancel(ctx)
}

// render runs next into a buffer and stores the finished response. A store
// failure is logged and the response is still served.
func (c *ResponseCache) render(next http.Handler, r *http.Request, key string, ttl time.Duration) *bufferedResponse {
	rec := newBufferedResponse()
	next.ServeHTTP(rec, r)

	if !c.storable(rec.status) {
		return rec
	}
	ctx := r.Context()
	if err := c.store.Set(ctx, key, rec.cached(), ttl); err != nil {
		if ctx.Err() != nil {
			return rec
		}
		logging.Warn(ctx, "response cache write failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
		return rec
	}
	c.metrics.CacheStored()
	return rec
}

func (c *ResponseCache) storable(status int) bool {
	if status >= 300 && status < 400 {
		return false
	}
	if status >= 200 && status < 300 {
		return true
	}
	return c.opts.CacheErrors
}

func replay(w http.ResponseWriter, resp ports.CachedResponse, marker string) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.Header().Set(cacheHeader, marker)
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// bufferedResponse collects a handler's output so it can be stored before it
// reaches the client.
type bufferedResponse struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = status
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

func (b *bufferedResponse) cached() ports.CachedResponse {
	return ports.CachedResponse{
		Status:      b.status,
		Body:        b.body.Bytes(),
		ContentType: b.header.Get("Content-Type"),
	}
}

// flushTo copies the buffered response to w. It is safe to call from several
// goroutines because it only reads b.
func (b *bufferedResponse) flushTo(w http.ResponseWriter, marker string) {
	dst := w.Header()
	for k, values := range b.header {
		dst[k] = append([]string(nil), values...)
	}
	dst.Set(cacheHeader, marker)
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
