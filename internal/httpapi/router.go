package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shelfd/internal/infrastructure/metrics"
	"shelfd/internal/usecase/catalog"
)

// CatalogService is the part of catalog.Service the HTTP layer calls.
type CatalogService interface {
	Home(ctx context.Context, page int) (catalog.HomePage, error)
	SeriesDetail(ctx context.Context, slug string) (catalog.DetailPage, error)
	SeriesList(ctx context.Context, q catalog.ListQuery) (catalog.ListPage, error)
	ReadChapter(ctx context.Context, slug string, chapterSlug string) (catalog.ReadPage, error)
	Search(ctx context.Context, keyword string, page int) (catalog.ArchivePage, error)
	Genres(ctx context.Context) (catalog.GenresPage, error)
	Archive(ctx context.Context, kind catalog.ArchiveKind, value string, page int) (catalog.ArchivePage, error)

	APIListSeries(ctx context.Context, q catalog.ListQuery) (catalog.APIList, error)
	APISeriesDetail(ctx context.Context, slug string) (catalog.APISeries, error)
	APIReadChapter(ctx context.Context, slug string, chapterSlug string) (catalog.APIChapter, error)
	APIHome(ctx context.Context) (catalog.APIHome, error)
	APIGenres(ctx context.Context) ([]string, error)
}

// RouteTTLs holds the cache lifetime of each cached page route.
type RouteTTLs struct {
	Home   time.Duration
	Detail time.Duration
	List   time.Duration
	Read   time.Duration
	Search time.Duration
	Genres time.Duration
	Genre  time.Duration
	Type   time.Duration
	Status time.Duration
}

type RouterOptions struct {
	TTLs           RouteTTLs
	RequestTimeout time.Duration
}

// NewRouter mounts the cached site pages, the uncached /api group and the
// operational endpoints.
func NewRouter(svc CatalogService, cache *ResponseCache, m *metrics.Metrics, opts RouterOptions) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(m))
	r.Use(recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	ttl := opts.TTLs
	r.With(cache.Handler(ttl.Home)).Get("/", h.home)
	r.With(cache.Handler(ttl.Detail)).Get("/manga/{slug}", h.seriesDetail)
	r.With(cache.Handler(ttl.List)).Get("/manga-list", h.seriesList)
	r.With(cache.Handler(ttl.Read)).Get("/read/{slug}/{chapterSlug}", h.readChapter)
	r.With(cache.Handler(ttl.Search)).Get("/search", h.search)
	r.With(cache.Handler(ttl.Genres)).Get("/genres", h.genres)
	r.With(cache.Handler(ttl.Genre)).Get("/genre/{tag}", h.archive(catalog.ArchiveGenre, "tag"))
	r.With(cache.Handler(ttl.Type)).Get("/type/{type}", h.archive(catalog.ArchiveType, "type"))
	r.With(cache.Handler(ttl.Status)).Get("/status/{status}", h.archive(catalog.ArchiveStatus, "status"))

	r.Route("/api", func(api chi.Router) {
		api.Get("/manga", h.apiListSeries)
		api.Get("/manga/{slug}", h.apiSeriesDetail)
		api.Get("/read/{slug}/{chapterSlug}", h.apiReadChapter)
		api.Get("/home", h.apiHome)
		api.Get("/genres", h.apiGenres)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
