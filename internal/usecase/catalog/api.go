package catalog

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	domaincatalog "shelfd/internal/domain/catalog"
	"shelfd/internal/errs"
	"shelfd/internal/ports"
)

// APIList is written as {success, page, data}: Page sits beside the envelope
// and Series becomes data.
type APIList struct {
	Page   int
	Series []SeriesCard
}

type APISeries struct {
	SeriesDetail
	Chapters        []ChapterItem `json:"chapters"`
	Recommendations []LatestCard  `json:"recommendations"`
}

type APISeriesRef struct {
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Thumb  string `json:"thumb"`
	Author string `json:"author"`
}

// Navigation is the flattened adjacency returned by the read endpoint; absent
// neighbours are null.
type Navigation struct {
	NextSlug  *string `json:"next_slug"`
	PrevSlug  *string `json:"prev_slug"`
	NextTitle *string `json:"next_title"`
	PrevTitle *string `json:"prev_title"`
}

type APIChapter struct {
	ChapterDetail
	Series     APISeriesRef `json:"manga"`
	Navigation Navigation   `json:"navigation"`
}

type APIHome struct {
	Recents   []SeriesCard `json:"recents"`
	Popular   []SeriesCard `json:"popular"`
	Manhwa    []SeriesCard `json:"manhwa"`
	Doujinshi []SeriesCard `json:"doujinshi"`
}

// APIListSeries lists series newest first. Filters match as substrings.
func (s *Service) APIListSeries(ctx context.Context, q ListQuery) (APIList, error) {
	if err := s.ready(ctx); err != nil {
		return APIList{}, err
	}
	page := max(q.Page, 1)

	items, err := s.repo.ListSeries(ctx, ports.SeriesFilter{
		TitleContains:  q.Q,
		Status:         ignoreAll(q.Status),
		StatusContains: true,
		Type:           ignoreAll(q.Type),
		TypeContains:   true,
		Tags:           q.Genres,
		Sort:           parseSort(q.OrderBy, ports.SortUpdatedDesc),
		Offset:         domaincatalog.PageOffset(page, pageSize),
		Limit:          pageSize,
	})
	if err != nil {
		return APIList{}, err
	}
	return APIList{Page: page, Series: toCards(items)}, nil
}

// APISeriesDetail is the detail payload without the view count side effect.
func (s *Service) APISeriesDetail(ctx context.Context, slug string) (APISeries, error) {
	if err := s.ready(ctx); err != nil {
		return APISeries{}, err
	}

	series, err := s.repo.GetSeriesBySlug(ctx, slug)
	if err != nil {
		return APISeries{}, err
	}
	chapters, recommendations, err := s.detailParts(ctx, series)
	if err != nil {
		return APISeries{}, err
	}
	return APISeries{
		SeriesDetail:    toDetail(series),
		Chapters:        toChapterItems(chapters),
		Recommendations: recommendations,
	}, nil
}

func (s *Service) APIReadChapter(ctx context.Context, slug string, chapterSlug string) (APIChapter, error) {
	if err := s.ready(ctx); err != nil {
		return APIChapter{}, err
	}

	series, chapter, err := s.lookupChapter(ctx, slug, chapterSlug)
	if err != nil {
		return APIChapter{}, err
	}
	adjacency, err := s.adjacency.Resolve(ctx, series.ID, chapter.OrderNum)
	if err != nil {
		return APIChapter{}, err
	}

	author := series.Author
	if author == "" {
		author = "Unknown"
	}
	detail := toChapterDetail(chapter)
	if detail.Images == nil {
		detail.Images = []string{}
	}
	return APIChapter{
		ChapterDetail: detail,
		Series: APISeriesRef{
			Title:  series.Title,
			Slug:   series.Slug,
			Thumb:  series.Thumb,
			Author: author,
		},
		Navigation: navigationOf(adjacency),
	}, nil
}

func navigationOf(adjacency domaincatalog.Adjacency) Navigation {
	var nav Navigation
	if adjacency.Next != nil {
		nav.NextSlug, nav.NextTitle = &adjacency.Next.Slug, &adjacency.Next.Title
	}
	if adjacency.Prev != nil {
		nav.PrevSlug, nav.PrevTitle = &adjacency.Prev.Slug, &adjacency.Prev.Title
	}
	return nav
}

func (s *Service) APIHome(ctx context.Context) (APIHome, error) {
	if err := s.ready(ctx); err != nil {
		return APIHome{}, err
	}

	var recents, popular, manhwa, doujinshi []ports.Series
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recents, err = s.repo.ListSeries(gctx, ports.SeriesFilter{Sort: ports.SortUpdatedDesc, Limit: apiShelfLimit})
		return errs.Wrap(err, "list recent series")
	})
	g.Go(func() (err error) {
		popular, err = s.repo.ListSeries(gctx, ports.SeriesFilter{Sort: ports.SortViewsDesc, Limit: apiShelfLimit})
		return errs.Wrap(err, "list popular series")
	})
	g.Go(func() (err error) {
		manhwa, err = s.listShelf(gctx, "manhwa", apiShelfLimit)
		return err
	})
	g.Go(func() (err error) {
		doujinshi, err = s.listShelf(gctx, "doujinshi", apiShelfLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return APIHome{}, err
	}

	return APIHome{
		Recents:   toCards(recents),
		Popular:   toCards(popular),
		Manhwa:    toCards(manhwa),
		Doujinshi: toCards(doujinshi),
	}, nil
}

// APIGenres returns the distinct non-empty tags, sorted.
func (s *Service) APIGenres(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag.Tag != "" {
			out = append(out, tag.Tag)
		}
	}
	sort.Strings(out)
	return out, nil
}
