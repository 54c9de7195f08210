package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"shelfd/internal/usecase/catalog"
)

type handler struct {
	svc CatalogService
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Home(r.Context(), pageParam(r.URL.Query()))
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) seriesDetail(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.SeriesDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) seriesList(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.SeriesList(r.Context(), listQuery(r.URL.Query()))
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) readChapter(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ReadChapter(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "chapterSlug"))
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := h.svc.Search(r.Context(), query.Get("q"), pageParam(query))
	if errors.Is(err, catalog.ErrSearchQueryRequired) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) genres(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Genres(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) archive(kind catalog.ArchiveKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := h.svc.Archive(r.Context(), kind, chi.URLParam(r, param), pageParam(r.URL.Query()))
		if err != nil {
			writeFailure(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *handler) apiListSeries(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.APIListSeries(r.Context(), listQuery(r.URL.Query()))
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writePage(w, out.Page, out.Series)
}

func (h *handler) apiSeriesDetail(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.APISeriesDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeData(w, out)
}

func (h *handler) apiReadChapter(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.APIReadChapter(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "chapterSlug"))
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeData(w, out)
}

func (h *handler) apiHome(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.APIHome(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeData(w, out)
}

func (h *handler) apiGenres(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.APIGenres(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, err)
		return
	}
	writeData(w, out)
}

// pageParam reads ?page=; anything missing or below 1 is page 1.
func pageParam(query url.Values) int {
	page, err := strconv.Atoi(strings.TrimSpace(query.Get("page")))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// listQuery accepts genre both as repeated genre= and as genre[]=.
func listQuery(query url.Values) catalog.ListQuery {
	genres := make([]string, 0, len(query["genre"])+len(query["genre[]"]))
	for _, key := range []string{"genre", "genre[]"} {
		for _, genre := range query[key] {
			if genre = strings.TrimSpace(genre); genre != "" {
				genres = append(genres, genre)
			}
		}
	}
	return catalog.ListQuery{
		Q:       strings.TrimSpace(query.Get("q")),
		Status:  strings.TrimSpace(query.Get("status")),
		Type:    strings.TrimSpace(query.Get("type")),
		Genres:  genres,
		OrderBy: strings.TrimSpace(query.Get("orderby")),
		Page:    pageParam(query),
	}
}
