package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
	"shelfd/internal/infrastructure/metrics"
)

// DefaultSweepInterval applies when no positive interval is configured.
const DefaultSweepInterval = 5 * time.Minute

type expirer interface {
	DeleteExpired(now time.Time) int
	Len() int
}

// Sweeper owns the goroutine that removes expired entries on a fixed period.
// Start and Stop are tied to the application lifecycle.
type Sweeper struct {
	store    expirer
	clock    clockwork.Clock
	interval time.Duration
	metrics  *metrics.Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewSweeper(store *MemoryStore, clock clockwork.Clock, interval time.Duration, m *metrics.Metrics) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		clock:    clock,
		interval: interval,
		metrics:  m,
	}
}

// Start launches the sweep loop. ctx supplies logging attributes only; the loop
// runs until Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	loopCtx = logging.WithAttrs(loopCtx, slog.String("component", "cache.sweeper"))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	ticker := s.clock.NewTicker(s.interval)
	go s.loop(loopCtx, ticker, s.done)

	logging.Info(loopCtx, "cache sweeper started", slog.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for it to exit or for ctx to end.
// Stop is safe to call multiple times.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	if ctx == nil {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "wait for cache sweeper")
	}
}

// SweepOnce removes everything expired at now.
func (s *Sweeper) SweepOnce(now time.Time) int {
	removed := s.store.DeleteExpired(now)
	s.metrics.CacheSwept(removed, s.store.Len())
	return removed
}

func (s *Sweeper) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "cache sweeper stopped")
			return
		case now := <-ticker.Chan():
			if removed := s.SweepOnce(now); removed > 0 {
				logging.Debug(ctx, "expired cache entries removed", slog.Int("removed", removed))
			}
		}
	}
}
