package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"shelfd/internal/infrastructure/cache"
	"shelfd/internal/infrastructure/metrics"
	"shelfd/internal/ports"
	"shelfd/internal/usecase/catalog"
)

type stubCatalogService struct {
	detailCalls    atomic.Int64
	apiDetailCalls atomic.Int64
	lastList       catalog.ListQuery
	lastArchive    string
	panicOnGenres  bool
}

func (s *stubCatalogService) Home(_ context.Context, page int) (catalog.HomePage, error) {
	return catalog.HomePage{Pagination: catalog.Pagination{Page: page}}, nil
}

func (s *stubCatalogService) SeriesDetail(_ context.Context, slug string) (catalog.DetailPage, error) {
	s.detailCalls.Add(1)
	if slug == "missing" {
		return catalog.DetailPage{}, ports.ErrSeriesNotFound
	}
	page := catalog.DetailPage{}
	page.Series.Slug = slug
	return page, nil
}

func (s *stubCatalogService) SeriesList(_ context.Context, q catalog.ListQuery) (catalog.ListPage, error) {
	s.lastList = q
	return catalog.ListPage{}, nil
}

func (s *stubCatalogService) ReadChapter(_ context.Context, _ string, chapterSlug string) (catalog.ReadPage, error) {
	if chapterSlug == "broken" {
		return catalog.ReadPage{}, errors.New("db down")
	}
	return catalog.ReadPage{}, nil
}

func (s *stubCatalogService) Search(_ context.Context, keyword string, _ int) (catalog.ArchivePage, error) {
	if strings.TrimSpace(keyword) == "" {
		return catalog.ArchivePage{}, catalog.ErrSearchQueryRequired
	}
	return catalog.ArchivePage{Heading: keyword}, nil
}

func (s *stubCatalogService) Genres(context.Context) (catalog.GenresPage, error) {
	if s.panicOnGenres {
		panic("template exploded")
	}
	return catalog.GenresPage{}, nil
}

func (s *stubCatalogService) Archive(_ context.Context, kind catalog.ArchiveKind, value string, _ int) (catalog.ArchivePage, error) {
	s.lastArchive = string(kind) + ":" + value
	return catalog.ArchivePage{}, nil
}

func (s *stubCatalogService) APIListSeries(_ context.Context, q catalog.ListQuery) (catalog.APIList, error) {
	return catalog.APIList{Page: q.Page, Series: []catalog.SeriesCard{}}, nil
}

func (s *stubCatalogService) APISeriesDetail(_ context.Context, slug string) (catalog.APISeries, error) {
	s.apiDetailCalls.Add(1)
	if slug == "missing" {
		return catalog.APISeries{}, ports.ErrSeriesNotFound
	}
	return catalog.APISeries{}, nil
}

func (s *stubCatalogService) APIReadChapter(context.Context, string, string) (catalog.APIChapter, error) {
	return catalog.APIChapter{}, ports.ErrChapterNotFound
}

func (s *stubCatalogService) APIHome(context.Context) (catalog.APIHome, error) {
	return catalog.APIHome{}, nil
}

func (s *stubCatalogService) APIGenres(context.Context) ([]string, error) {
	return []string{"Action"}, nil
}

func newTestRouter(t *testing.T, svc CatalogService) (http.Handler, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry(), "shelf")
	store := cache.NewMemoryStore(clockwork.NewFakeClock())
	ttl := time.Minute
	router := NewRouter(svc, NewResponseCache(store, CacheOptions{CacheErrors: true}, m), m, RouterOptions{
		TTLs: RouteTTLs{
			Home: ttl, Detail: ttl, List: ttl, Read: ttl, Search: ttl,
			Genres: ttl, Genre: ttl, Type: ttl, Status: ttl,
		},
		RequestTimeout: time.Second,
	})
	return router, m
}

func TestCachedDetailSkipsViewIncrement(t *testing.T) {
	svc := &stubCatalogService{}
	router, _ := newTestRouter(t, svc)

	for i := 0; i < 3; i++ {
		resp := serve(t, router, http.MethodGet, "/manga/one-piece")
		if resp.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
		}
	}
	if svc.detailCalls.Load() != 1 {
		t.Fatalf("SeriesDetail calls = %d, want 1", svc.detailCalls.Load())
	}

	for i := 0; i < 2; i++ {
		serve(t, router, http.MethodGet, "/api/manga/one-piece")
	}
	if svc.apiDetailCalls.Load() != 2 {
		t.Fatalf("APISeriesDetail calls = %d, want 2 (api is uncached)", svc.apiDetailCalls.Load())
	}
}

func TestErrorShapes(t *testing.T) {
	router, _ := newTestRouter(t, &stubCatalogService{})

	cases := []struct {
		target string
		status int
	}{
		{target: "/manga/missing", status: http.StatusNotFound},
		{target: "/api/manga/missing", status: http.StatusNotFound},
		{target: "/api/read/a/b", status: http.StatusNotFound},
		{target: "/read/a/broken", status: http.StatusInternalServerError},
		{target: "/nope", status: http.StatusNotFound},
	}
	for _, tc := range cases {
		resp := serve(t, router, http.MethodGet, tc.target)
		if resp.Code != tc.status {
			t.Fatalf("%s status = %d, want %d", tc.target, resp.Code, tc.status)
		}
		var body envelope
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s decode body: %v", tc.target, err)
		}
		if body.Success || body.Message == "" {
			t.Fatalf("%s body = %+v", tc.target, body)
		}
	}
}

func TestSearchWithoutQueryRedirects(t *testing.T) {
	router, _ := newTestRouter(t, &stubCatalogService{})

	resp := serve(t, router, http.MethodGet, "/search")
	if resp.Code != http.StatusFound || resp.Header().Get("Location") != "/" {
		t.Fatalf("search redirect = %d %q", resp.Code, resp.Header().Get("Location"))
	}
}

func TestQueryParsing(t *testing.T) {
	svc := &stubCatalogService{}
	router, _ := newTestRouter(t, svc)

	serve(t, router, http.MethodGet, "/manga-list?genre=action&genre[]=drama&status=all&orderby=popular&page=x")
	if got := strings.Join(svc.lastList.Genres, ","); got != "action,drama" {
		t.Fatalf("genres = %q", got)
	}
	if svc.lastList.Page != 1 || svc.lastList.OrderBy != "popular" || svc.lastList.Status != "all" {
		t.Fatalf("list query = %+v", svc.lastList)
	}

	serve(t, router, http.MethodGet, "/genre/slice-of-life?page=2")
	if svc.lastArchive != "genre:slice-of-life" {
		t.Fatalf("archive = %q", svc.lastArchive)
	}
	serve(t, router, http.MethodGet, "/status/ongoing")
	if svc.lastArchive != "status:ongoing" {
		t.Fatalf("archive = %q", svc.lastArchive)
	}
}

func TestAPIEnvelope(t *testing.T) {
	router, _ := newTestRouter(t, &stubCatalogService{})

	resp := serve(t, router, http.MethodGet, "/api/genres")
	var body struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success || len(body.Data) != 1 || body.Data[0] != "Action" {
		t.Fatalf("body = %+v", body)
	}
}

func TestAPIListPutsPageBesideData(t *testing.T) {
	router, _ := newTestRouter(t, &stubCatalogService{})

	resp := serve(t, router, http.MethodGet, "/api/manga?page=3")
	var body map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if string(body["success"]) != "true" || string(body["page"]) != "3" || string(body["data"]) != "[]" {
		t.Fatalf("body = %s", resp.Body.String())
	}
}

func TestPanicBecomes500(t *testing.T) {
	router, _ := newTestRouter(t, &stubCatalogService{panicOnGenres: true})

	resp := serve(t, router, http.MethodGet, "/genres")
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, &stubCatalogService{})

	if resp := serve(t, router, http.MethodGet, "/healthz"); resp.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.Code)
	}
	serve(t, router, http.MethodGet, "/")
	serve(t, router, http.MethodGet, "/")

	resp := serve(t, router, http.MethodGet, "/metrics")
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.Code)
	}
	out := resp.Body.String()
	for _, want := range []string{
		`shelf_response_cache_lookups_total{result="hit"} 1`,
		`shelf_response_cache_lookups_total{result="miss"} 1`,
		`shelf_http_requests_total`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
