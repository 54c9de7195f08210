package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
	"shelfd/internal/infrastructure/metrics"
)

// accessLog tags the request context for logging and records one line and one
// metric sample per request.
func accessLog(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ctx := logging.WithRequest(r.Context(), middleware.GetReqID(r.Context()), r.Method, r.URL.Path)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(started)
			m.ObserveHTTP(route, strconv.Itoa(status), elapsed)

			cacheResult := ww.Header().Get(cacheHeader)
			if cacheResult == "" {
				cacheResult = "NONE"
			}
			logging.Info(ctx, "http request",
				slog.String("route", route),
				slog.Int("status", status),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("cache", cacheResult),
			)
		})
	}
}

// recoverer turns a handler panic into a logged 500 with a stack trace.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := errs.WithStack(fmt.Errorf("panic: %v", rec))
			logging.Error(r.Context(), "handler panicked", slog.Any("err", errs.Loggable(err)))
			writeMessage(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
