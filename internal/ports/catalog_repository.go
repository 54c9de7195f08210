package ports

import (
	"context"
	"errors"
	"time"

	"shelfd/internal/domain/catalog"
)

var (
	ErrSeriesNotFound  = errors.New("series not found")
	ErrChapterNotFound = errors.New("chapter not found")
)

type SeriesSort string

const (
	SortTitleAsc    SeriesSort = "title"
	SortTitleDesc   SeriesSort = "titledesc"
	SortUpdatedDesc SeriesSort = "update"
	SortViewsDesc   SeriesSort = "popular"
)

// SeriesFilter narrows series listings. Text matches are case-insensitive.
type SeriesFilter struct {
	TitleContains string
	// Status and Type match exactly unless the corresponding *Contains flag is set.
	Status         string
	StatusContains bool
	Type           string
	TypeContains   bool
	// Tags must all be present; each matches a tag whose URL form contains it.
	Tags   []string
	Sort   SeriesSort
	Offset int
	Limit  int
}

type Series struct {
	ID        string
	Slug      string
	Title     string
	Thumb     string
	Synopsis  string
	Author    string
	Type      string
	Status    string
	Views     int64
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Chapter struct {
	ID        string
	SeriesID  string
	Slug      string
	Title     string
	OrderKey  string
	OrderNum  float64
	Images    []string
	Content   string
	CreatedAt time.Time
}

type SeriesUpsert struct {
	ID       string
	Slug     string
	Title    string
	Thumb    string
	Synopsis string
	Author   string
	Type     string
	Status   string
	Tags     []string
}

type ChapterUpsert struct {
	ID       string
	SeriesID string
	Slug     string
	Title    string
	OrderKey string
	Images   []string
	Content  string
}

type TagCount struct {
	Tag   string
	Count int64
}

// ChapterQuery is the read capability the relationship resolvers depend on.
// Order comparisons happen on the coerced numeric chapter index.
type ChapterQuery interface {
	// LatestChapters runs one grouped query; series without chapters are absent from the map.
	LatestChapters(ctx context.Context, seriesIDs []string) (map[string]catalog.LatestChapter, error)
	// NextChapter returns the chapter with the smallest index strictly greater than after, or nil.
	NextChapter(ctx context.Context, seriesID string, after float64) (*catalog.ChapterRef, error)
	// PrevChapter returns the chapter with the largest index strictly less than before, or nil.
	PrevChapter(ctx context.Context, seriesID string, before float64) (*catalog.ChapterRef, error)
}

type CatalogReadRepository interface {
	ChapterQuery
	ListSeries(ctx context.Context, filter SeriesFilter) ([]Series, error)
	CountSeries(ctx context.Context, filter SeriesFilter) (int64, error)
	GetSeriesBySlug(ctx context.Context, slug string) (Series, error)
	SampleSeries(ctx context.Context, excludeID string, limit int) ([]Series, error)
	ListChapters(ctx context.Context, seriesID string) ([]Chapter, error)
	GetChapter(ctx context.Context, seriesID string, slug string) (Chapter, error)
	// CountChapters runs one grouped count; series without chapters map to 0.
	CountChapters(ctx context.Context, seriesIDs []string) (map[string]int64, error)
	ListTags(ctx context.Context) ([]TagCount, error)
	DistinctStatuses(ctx context.Context) ([]string, error)
	DistinctTypes(ctx context.Context) ([]string, error)
}

type CatalogRepository interface {
	CatalogReadRepository
	IncrementViews(ctx context.Context, seriesID string) error
	UpsertSeries(ctx context.Context, input SeriesUpsert) (Series, error)
	UpsertChapter(ctx context.Context, input ChapterUpsert) (Chapter, error)
}
