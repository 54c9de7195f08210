package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.CacheLookup(ResultHit)
	m.CacheStored()
	m.CacheSwept(1, 2)
	m.ObserveResolver("latest", time.Now())
	m.ObserveBatch(3)
	m.ObserveHTTP("/", "200", time.Millisecond)
	if m.Handler() == nil {
		t.Fatal("Handler() = nil")
	}
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "shelf")

	m.CacheLookup(ResultMiss)
	m.CacheLookup(ResultMiss)
	m.CacheSwept(4, 6)
	m.ObserveHTTP("/manga/{slug}", "200", time.Millisecond)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(ResultMiss)); got != 2 {
		t.Fatalf("miss lookups = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheEvictions); got != 4 {
		t.Fatalf("evictions = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.CacheEntries); got != 6 {
		t.Fatalf("entries = %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/manga/{slug}", "200")); got != 1 {
		t.Fatalf("http requests = %v, want 1", got)
	}
}
