package catalog

import (
	"context"
	"errors"
	"time"

	domaincatalog "shelfd/internal/domain/catalog"
	"shelfd/internal/errs"
	"shelfd/internal/infrastructure/metrics"
	"shelfd/internal/ports"
)

const (
	pageSize            = 24
	trendingLimit       = 10
	shelfLimit          = 24
	recommendationLimit = 12
	apiShelfLimit       = 10
)

var (
	ErrSearchQueryRequired = errors.New("search query is required")
	ErrInvalidArchiveKind  = errors.New("invalid archive kind")
)

type Options struct {
	SiteName        string
	SiteURL         string
	LatestBatchSize int
}

type Service struct {
	repo      ports.CatalogRepository
	uow       ports.UnitOfWork
	latest    *LatestResolver
	adjacency *AdjacencyResolver
	opts      Options
	newID     func() string
}

// NewService wires catalog read paths and ingestion around one repository.
func NewService(repo ports.CatalogRepository, uow ports.UnitOfWork, opts Options, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		uow:       uow,
		latest:    NewLatestResolver(repo, opts.LatestBatchSize, m),
		adjacency: NewAdjacencyResolver(repo, m),
		opts:      opts,
		newID:     newUUID,
	}
}

// SeriesCard is the series projection used on listing pages.
type SeriesCard struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Thumb     string    `json:"thumb"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Views     int64     `json:"views"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LatestCard is a SeriesCard with its newest chapter attached; LatestChild is
// null for a series without chapters.
type LatestCard struct {
	SeriesCard
	LatestChild *domaincatalog.LatestChapter `json:"latestChild"`
}

type CountedCard struct {
	SeriesCard
	ChapterCount int64 `json:"chapterCount"`
}

type SeriesDetail struct {
	SeriesCard
	Synopsis  string    `json:"synopsis"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChapterItem struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	OrderKey  float64   `json:"orderKey"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChapterDetail struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	OrderKey  float64   `json:"orderKey"`
	Images    []string  `json:"images"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type PageMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Canonical   string `json:"canonical,omitempty"`
}

type Pagination struct {
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	Total      int64  `json:"total"`
	BaseURL    string `json:"baseUrl,omitempty"`
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func (s *Service) ready(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if s.repo == nil {
		return errors.New("catalog repository is required")
	}
	return nil
}

func toCard(series ports.Series) SeriesCard {
	tags := series.Tags
	if tags == nil {
		tags = []string{}
	}
	return SeriesCard{
		ID:        series.ID,
		Slug:      series.Slug,
		Title:     series.Title,
		Thumb:     series.Thumb,
		Type:      series.Type,
		Status:    series.Status,
		Views:     series.Views,
		Tags:      tags,
		UpdatedAt: series.UpdatedAt,
	}
}

func toCards(items []ports.Series) []SeriesCard {
	cards := make([]SeriesCard, 0, len(items))
	for _, item := range items {
		cards = append(cards, toCard(item))
	}
	return cards
}

func toDetail(series ports.Series) SeriesDetail {
	return SeriesDetail{
		SeriesCard: toCard(series),
		Synopsis:   series.Synopsis,
		Author:     series.Author,
		CreatedAt:  series.CreatedAt,
	}
}

func toChapterItems(chapters []ports.Chapter) []ChapterItem {
	items := make([]ChapterItem, 0, len(chapters))
	for _, chapter := range chapters {
		items = append(items, ChapterItem{
			Slug:      chapter.Slug,
			Title:     chapter.Title,
			OrderKey:  chapter.OrderNum,
			CreatedAt: chapter.CreatedAt,
		})
	}
	return items
}

func toChapterDetail(chapter ports.Chapter) ChapterDetail {
	return ChapterDetail{
		ID:        chapter.ID,
		Slug:      chapter.Slug,
		Title:     chapter.Title,
		OrderKey:  chapter.OrderNum,
		Images:    chapter.Images,
		Content:   chapter.Content,
		CreatedAt: chapter.CreatedAt,
	}
}

// withChapterCounts attaches chapter counts using one grouped count query.
func (s *Service) withChapterCounts(ctx context.Context, cards []SeriesCard) ([]CountedCard, error) {
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}

	counts, err := s.repo.CountChapters(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CountedCard, 0, len(cards))
	for _, card := range cards {
		out = append(out, CountedCard{SeriesCard: card, ChapterCount: counts[card.ID]})
	}
	return out, nil
}
