package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"shelfd/internal/bootstrap/config"
	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
	"shelfd/internal/httpapi"
	cacheinfra "shelfd/internal/infrastructure/cache"
	"shelfd/internal/infrastructure/metrics"
	"shelfd/internal/ports"
	"shelfd/internal/usecase/catalog"
)

// ServeModule adds the response cache, its sweeper and the HTTP server on top
// of Module. The sweeper and the listener follow the fx lifecycle. Callers
// supply ServeOptions.
var ServeModule = fx.Options(
	fx.Provide(provideSchema),
	fx.Provide(func() clockwork.Clock { return clockwork.NewRealClock() }),
	fx.Provide(cacheinfra.NewMemoryStore),
	fx.Provide(func(store *cacheinfra.MemoryStore) ports.ResponseCache { return store }),
	fx.Provide(provideSweeper),
	fx.Provide(provideResponseCache),
	fx.Provide(provideRouter),
	fx.Provide(provideHTTPServer),
	fx.Invoke(func(*cacheinfra.Sweeper, *HTTPServer) {}),
)

type ServeOptions struct {
	// Migrate runs the schema migration before the listener opens.
	Migrate bool
}

// Schema is a start-order marker: the HTTP server depends on it, so its start
// hook runs first.
type Schema struct{}

func provideSchema(lc fx.Lifecycle, app *App, opts ServeOptions) *Schema {
	if opts.Migrate {
		lc.Append(fx.Hook{OnStart: app.InitSchema})
	}
	return &Schema{}
}

func provideSweeper(
	lc fx.Lifecycle,
	ctx context.Context,
	cfg config.Config,
	store *cacheinfra.MemoryStore,
	clock clockwork.Clock,
	m *metrics.Metrics,
) *cacheinfra.Sweeper {
	sweeper := cacheinfra.NewSweeper(store, clock, cfg.Cache.SweepInterval, m)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sweeper.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			return sweeper.Stop(stopCtx)
		},
	})
	return sweeper
}

func provideResponseCache(cfg config.Config, store ports.ResponseCache, m *metrics.Metrics) *httpapi.ResponseCache {
	return httpapi.NewResponseCache(store, httpapi.CacheOptions{
		CacheErrors:   cfg.Cache.CacheErrorResponses,
		Coalesce:      cfg.Cache.Coalesce,
		RenderTimeout: cfg.HTTP.RequestTimeout,
	}, m)
}

func provideRouter(cfg config.Config, svc *catalog.Service, cache *httpapi.ResponseCache, m *metrics.Metrics) http.Handler {
	ttl := cfg.Routes.TTL
	return httpapi.NewRouter(svc, cache, m, httpapi.RouterOptions{
		TTLs: httpapi.RouteTTLs{
			Home:   ttl.Home,
			Detail: ttl.Detail,
			List:   ttl.List,
			Read:   ttl.Read,
			Search: ttl.Search,
			Genres: ttl.Genres,
			Genre:  ttl.Genre,
			Type:   ttl.Type,
			Status: ttl.Status,
		},
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
}

// HTTPServer owns the listener. Err reports a failure of the serve loop after
// a successful start.
type HTTPServer struct {
	server *http.Server
	errCh  chan error
	addr   net.Addr
}

func (s *HTTPServer) Err() <-chan error { return s.errCh }

// Addr is the bound address, useful when configured with port 0.
func (s *HTTPServer) Addr() string {
	if s.addr == nil {
		return s.server.Addr
	}
	return s.addr.String()
}

func provideHTTPServer(lc fx.Lifecycle, ctx context.Context, cfg config.Config, handler http.Handler, _ *Schema) *HTTPServer {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "http.server"))
	srv := &HTTPServer{
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			BaseContext: func(net.Listener) context.Context {
				return context.WithoutCancel(logCtx)
			},
		},
		errCh: make(chan error, 1),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.server.Addr)
			if err != nil {
				return errs.Wrapf(err, "listen on %s", srv.server.Addr)
			}
			srv.addr = ln.Addr()
			logging.Info(logCtx, "http server listening", slog.String("addr", srv.Addr()))

			go func() {
				if err := srv.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logging.Error(logCtx, "http server failed", slog.Any("err", errs.Loggable(err)))
					srv.errCh <- errs.Wrap(err, "serve http")
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			shutdownCtx := stopCtx
			if cfg.HTTP.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				shutdownCtx, cancel = context.WithTimeout(stopCtx, cfg.HTTP.ShutdownTimeout)
				defer cancel()
			}
			if err := srv.server.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			logging.Info(logCtx, "http server stopped")
			return nil
		},
	})
	return srv
}
