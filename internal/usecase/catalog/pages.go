package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	domaincatalog "shelfd/internal/domain/catalog"
	"shelfd/internal/errs"
	"shelfd/internal/ports"
)

type HomePage struct {
	Meta       PageMeta     `json:"meta"`
	Recents    []LatestCard `json:"recents"`
	Trending   []SeriesCard `json:"trending"`
	Manhwa     []LatestCard `json:"manhwa"`
	Doujinshi  []LatestCard `json:"doujinshi"`
	Pagination Pagination   `json:"pagination"`
}

type DetailPage struct {
	Meta            PageMeta      `json:"meta"`
	Series          SeriesDetail  `json:"series"`
	Chapters        []ChapterItem `json:"chapters"`
	Recommendations []LatestCard  `json:"recommendations"`
}

// ListQuery carries the series list filters as received from the query string.
type ListQuery struct {
	Q       string
	Status  string
	Type    string
	Genres  []string
	OrderBy string
	Page    int
}

type FilterOptions struct {
	Genres   []string `json:"genres"`
	Statuses []string `json:"statuses"`
	Types    []string `json:"types"`
}

type ListPage struct {
	Meta       PageMeta      `json:"meta"`
	Series     []CountedCard `json:"series"`
	Options    FilterOptions `json:"options"`
	Pagination Pagination    `json:"pagination"`
}

type ReadPage struct {
	Meta      PageMeta                `json:"meta"`
	Series    SeriesDetail            `json:"series"`
	Chapter   ChapterDetail           `json:"chapter"`
	Chapters  []ChapterItem           `json:"chapters"`
	Adjacency domaincatalog.Adjacency `json:"adjacency"`
}

type ArchivePage struct {
	Meta       PageMeta      `json:"meta"`
	Heading    string        `json:"heading"`
	Series     []CountedCard `json:"series"`
	Pagination Pagination    `json:"pagination"`
}

type GenreCount struct {
	Tag   string `json:"tag"`
	Slug  string `json:"slug"`
	Count int64  `json:"count"`
}

type GenresPage struct {
	Meta   PageMeta     `json:"meta"`
	Genres []GenreCount `json:"genres"`
}

type ArchiveKind string

const (
	ArchiveGenre  ArchiveKind = "genre"
	ArchiveType   ArchiveKind = "type"
	ArchiveStatus ArchiveKind = "status"
)

// Home builds the landing page. Recents and both type shelves share a single
// latest-chapter lookup.
func (s *Service) Home(ctx context.Context, page int) (HomePage, error) {
	if err := s.ready(ctx); err != nil {
		return HomePage{}, err
	}
	page = max(page, 1)

	var (
		recents, trending, manhwa, doujinshi []ports.Series
		total                                int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recents, err = s.repo.ListSeries(gctx, ports.SeriesFilter{
			Sort:   ports.SortUpdatedDesc,
			Offset: domaincatalog.PageOffset(page, pageSize),
			Limit:  pageSize,
		})
		return errs.Wrap(err, "list recent series")
	})
	g.Go(func() (err error) {
		total, err = s.repo.CountSeries(gctx, ports.SeriesFilter{})
		return errs.Wrap(err, "count series")
	})
	g.Go(func() (err error) {
		trending, err = s.repo.ListSeries(gctx, ports.SeriesFilter{Sort: ports.SortViewsDesc, Limit: trendingLimit})
		return errs.Wrap(err, "list trending series")
	})
	g.Go(func() (err error) {
		manhwa, err = s.listShelf(gctx, "manhwa", shelfLimit)
		return err
	})
	g.Go(func() (err error) {
		doujinshi, err = s.listShelf(gctx, "doujinshi", shelfLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return HomePage{}, err
	}

	cards := make([]SeriesCard, 0, len(recents)+len(manhwa)+len(doujinshi))
	cards = append(cards, toCards(recents)...)
	cards = append(cards, toCards(manhwa)...)
	cards = append(cards, toCards(doujinshi)...)
	withLatest, err := s.latest.Attach(ctx, cards)
	if err != nil {
		return HomePage{}, err
	}

	first, second := len(recents), len(recents)+len(manhwa)
	title := s.opts.SiteName
	if page > 1 {
		title = fmt.Sprintf("%s - Page %d", s.opts.SiteName, page)
	}
	return HomePage{
		Meta: PageMeta{
			Title:       title,
			Description: fmt.Sprintf("Read the latest series updates on %s.", s.opts.SiteName),
			Canonical:   s.canonical("/", page),
		},
		Recents:   withLatest[:first],
		Trending:  toCards(trending),
		Manhwa:    withLatest[first:second],
		Doujinshi: withLatest[second:],
		Pagination: Pagination{
			Page:       page,
			TotalPages: domaincatalog.TotalPages(total, pageSize),
			Total:      total,
			BaseURL:    "/?",
		},
	}, nil
}

func (s *Service) listShelf(ctx context.Context, seriesType string, limit int) ([]ports.Series, error) {
	items, err := s.repo.ListSeries(ctx, ports.SeriesFilter{
		Type:         seriesType,
		TypeContains: true,
		Sort:         ports.SortUpdatedDesc,
		Limit:        limit,
	})
	return items, errs.Wrapf(err, "list %s shelf", seriesType)
}

// SeriesDetail counts a view and loads the detail page. A cached response
// skips this call, so cached hits are not counted.
func (s *Service) SeriesDetail(ctx context.Context, slug string) (DetailPage, error) {
	if err := s.ready(ctx); err != nil {
		return DetailPage{}, err
	}

	series, err := s.repo.GetSeriesBySlug(ctx, slug)
	if err != nil {
		return DetailPage{}, err
	}
	if err := s.repo.IncrementViews(ctx, series.ID); err != nil {
		return DetailPage{}, err
	}
	series.Views++

	chapters, recommendations, err := s.detailParts(ctx, series)
	if err != nil {
		return DetailPage{}, err
	}

	seriesType := series.Type
	if seriesType == "" {
		seriesType = "Comic"
	}
	return DetailPage{
		Meta: PageMeta{
			Title:       fmt.Sprintf("%s - %s", series.Title, s.opts.SiteName),
			Description: strings.TrimSpace(fmt.Sprintf("Read %s %s on %s. %s", seriesType, series.Title, s.opts.SiteName, series.Synopsis)),
			Canonical:   s.canonical("/manga/"+series.Slug, 1),
		},
		Series:          toDetail(series),
		Chapters:        toChapterItems(chapters),
		Recommendations: recommendations,
	}, nil
}

func (s *Service) detailParts(ctx context.Context, series ports.Series) ([]ports.Chapter, []LatestCard, error) {
	chapters, err := s.repo.ListChapters(ctx, series.ID)
	if err != nil {
		return nil, nil, errs.Wrap(err, "list chapters")
	}
	sample, err := s.repo.SampleSeries(ctx, series.ID, recommendationLimit)
	if err != nil {
		return nil, nil, errs.Wrap(err, "sample recommendations")
	}
	recommendations, err := s.latest.Attach(ctx, toCards(sample))
	if err != nil {
		return nil, nil, err
	}
	return chapters, recommendations, nil
}

func (s *Service) SeriesList(ctx context.Context, q ListQuery) (ListPage, error) {
	if err := s.ready(ctx); err != nil {
		return ListPage{}, err
	}
	page := max(q.Page, 1)

	filter := ports.SeriesFilter{
		TitleContains:  q.Q,
		Status:         ignoreAll(q.Status),
		StatusContains: true,
		Type:           ignoreAll(q.Type),
		TypeContains:   true,
		Tags:           q.Genres,
		Sort:           parseSort(q.OrderBy, ports.SortTitleAsc),
	}
	total, err := s.repo.CountSeries(ctx, filter)
	if err != nil {
		return ListPage{}, err
	}
	filter.Offset = domaincatalog.PageOffset(page, pageSize)
	filter.Limit = pageSize
	items, err := s.repo.ListSeries(ctx, filter)
	if err != nil {
		return ListPage{}, err
	}
	counted, err := s.withChapterCounts(ctx, toCards(items))
	if err != nil {
		return ListPage{}, err
	}
	options, err := s.filterOptions(ctx)
	if err != nil {
		return ListPage{}, err
	}

	return ListPage{
		Meta: PageMeta{
			Title:       fmt.Sprintf("Series List - %s", s.opts.SiteName),
			Description: "Browse every series by title, status, type and genre.",
		},
		Series:  counted,
		Options: options,
		Pagination: Pagination{
			Page:       page,
			TotalPages: domaincatalog.TotalPages(total, pageSize),
			Total:      total,
			BaseURL:    "/manga-list?" + listQueryString(q),
		},
	}, nil
}

func (s *Service) filterOptions(ctx context.Context) (FilterOptions, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return FilterOptions{}, err
	}
	statuses, err := s.repo.DistinctStatuses(ctx)
	if err != nil {
		return FilterOptions{}, err
	}
	types, err := s.repo.DistinctTypes(ctx)
	if err != nil {
		return FilterOptions{}, err
	}

	genres := make([]string, 0, len(tags))
	for _, tag := range tags {
		genres = append(genres, tag.Tag)
	}
	return FilterOptions{Genres: genres, Statuses: statuses, Types: types}, nil
}

// ReadChapter loads a chapter with its series, the full chapter list and the
// chapters on either side of it.
func (s *Service) ReadChapter(ctx context.Context, slug string, chapterSlug string) (ReadPage, error) {
	if err := s.ready(ctx); err != nil {
		return ReadPage{}, err
	}

	series, chapter, err := s.lookupChapter(ctx, slug, chapterSlug)
	if err != nil {
		return ReadPage{}, err
	}
	chapters, err := s.repo.ListChapters(ctx, series.ID)
	if err != nil {
		return ReadPage{}, errs.Wrap(err, "list chapters")
	}
	adjacency, err := s.adjacency.Resolve(ctx, series.ID, chapter.OrderNum)
	if err != nil {
		return ReadPage{}, err
	}

	return ReadPage{
		Meta: PageMeta{
			Title:       fmt.Sprintf("%s %s - %s", series.Title, chapter.Title, s.opts.SiteName),
			Description: fmt.Sprintf("Read %s %s on %s.", series.Title, chapter.Title, s.opts.SiteName),
			Canonical:   s.canonical("/read/"+series.Slug+"/"+chapter.Slug, 1),
		},
		Series:    toDetail(series),
		Chapter:   toChapterDetail(chapter),
		Chapters:  toChapterItems(chapters),
		Adjacency: adjacency,
	}, nil
}

func (s *Service) lookupChapter(ctx context.Context, slug string, chapterSlug string) (ports.Series, ports.Chapter, error) {
	series, err := s.repo.GetSeriesBySlug(ctx, slug)
	if err != nil {
		return ports.Series{}, ports.Chapter{}, err
	}
	chapter, err := s.repo.GetChapter(ctx, series.ID, chapterSlug)
	if err != nil {
		return ports.Series{}, ports.Chapter{}, err
	}
	return series, chapter, nil
}

// Search returns ErrSearchQueryRequired for a blank keyword.
func (s *Service) Search(ctx context.Context, keyword string, page int) (ArchivePage, error) {
	if err := s.ready(ctx); err != nil {
		return ArchivePage{}, err
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return ArchivePage{}, ErrSearchQueryRequired
	}
	page = max(page, 1)

	out, err := s.archive(ctx, ports.SeriesFilter{TitleContains: keyword}, page)
	if err != nil {
		return ArchivePage{}, err
	}
	out.Heading = fmt.Sprintf("Search results: %q", keyword)
	out.Meta = PageMeta{
		Title:       fmt.Sprintf("Search %s - %s", keyword, s.opts.SiteName),
		Description: fmt.Sprintf("Search results for %s", keyword),
	}
	out.Pagination.BaseURL = "/search?q=" + url.QueryEscape(keyword) + "&"
	return out, nil
}

func (s *Service) Genres(ctx context.Context) (GenresPage, error) {
	if err := s.ready(ctx); err != nil {
		return GenresPage{}, err
	}

	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return GenresPage{}, err
	}
	genres := make([]GenreCount, 0, len(tags))
	for _, tag := range tags {
		genres = append(genres, GenreCount{
			Tag:   tag.Tag,
			Slug:  domaincatalog.NormalizeTag(tag.Tag),
			Count: tag.Count,
		})
	}
	return GenresPage{
		Meta: PageMeta{
			Title:       fmt.Sprintf("Genres - %s", s.opts.SiteName),
			Description: "Every genre in the catalog.",
			Canonical:   s.canonical("/genres", 1),
		},
		Genres: genres,
	}, nil
}

// Archive lists the series of one genre, type or status. Genre values use the
// URL form (hyphens match hyphens or spaces); type and status match exactly,
// ignoring case.
func (s *Service) Archive(ctx context.Context, kind ArchiveKind, value string, page int) (ArchivePage, error) {
	if err := s.ready(ctx); err != nil {
		return ArchivePage{}, err
	}
	value = strings.TrimSpace(value)
	page = max(page, 1)

	var filter ports.SeriesFilter
	switch kind {
	case ArchiveGenre:
		filter = ports.SeriesFilter{Tags: []string{value}}
	case ArchiveType:
		filter = ports.SeriesFilter{Type: value, Sort: ports.SortUpdatedDesc}
	case ArchiveStatus:
		filter = ports.SeriesFilter{Status: value, Sort: ports.SortUpdatedDesc}
	default:
		return ArchivePage{}, errs.Wrapf(ErrInvalidArchiveKind, "archive %q", kind)
	}

	out, err := s.archive(ctx, filter, page)
	if err != nil {
		return ArchivePage{}, err
	}

	label := domaincatalog.DisplayTag(value)
	kindLabel := strings.ToUpper(string(kind[:1])) + string(kind[1:])
	path := "/" + string(kind) + "/" + url.PathEscape(value)
	title := fmt.Sprintf("%s %s - %s", kindLabel, label, s.opts.SiteName)
	if page > 1 {
		title = fmt.Sprintf("%s %s - Page %d - %s", kindLabel, label, page, s.opts.SiteName)
	}
	out.Heading = fmt.Sprintf("%s: %s", kindLabel, label)
	out.Meta = PageMeta{
		Title:       title,
		Description: fmt.Sprintf("Series filed under %s %s.", strings.ToLower(kindLabel), label),
		Canonical:   s.canonical(path, page),
	}
	out.Pagination.BaseURL = path + "?"
	return out, nil
}

func (s *Service) archive(ctx context.Context, filter ports.SeriesFilter, page int) (ArchivePage, error) {
	total, err := s.repo.CountSeries(ctx, filter)
	if err != nil {
		return ArchivePage{}, err
	}
	filter.Offset = domaincatalog.PageOffset(page, pageSize)
	filter.Limit = pageSize
	items, err := s.repo.ListSeries(ctx, filter)
	if err != nil {
		return ArchivePage{}, err
	}
	counted, err := s.withChapterCounts(ctx, toCards(items))
	if err != nil {
		return ArchivePage{}, err
	}
	return ArchivePage{
		Series: counted,
		Pagination: Pagination{
			Page:       page,
			TotalPages: domaincatalog.TotalPages(total, pageSize),
			Total:      total,
		},
	}, nil
}

func (s *Service) canonical(path string, page int) string {
	base := strings.TrimRight(s.opts.SiteURL, "/")
	if page > 1 {
		return fmt.Sprintf("%s%s?page=%d", base, path, page)
	}
	return base + path
}

func ignoreAll(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), "all") {
		return ""
	}
	return value
}

func parseSort(raw string, fallback ports.SeriesSort) ports.SeriesSort {
	switch sort := ports.SeriesSort(strings.ToLower(strings.TrimSpace(raw))); sort {
	case ports.SortTitleAsc, ports.SortTitleDesc, ports.SortUpdatedDesc, ports.SortViewsDesc:
		return sort
	default:
		return fallback
	}
}

// listQueryString re-encodes the active filters, without page, for pagination links.
func listQueryString(q ListQuery) string {
	values := url.Values{}
	if q.Q != "" {
		values.Set("q", q.Q)
	}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Type != "" {
		values.Set("type", q.Type)
	}
	for _, genre := range q.Genres {
		values.Add("genre", genre)
	}
	if q.OrderBy != "" {
		values.Set("orderby", q.OrderBy)
	}
	if len(values) == 0 {
		return ""
	}
	return values.Encode() + "&"
}
