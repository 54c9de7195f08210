package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shelfd/internal/domain/catalog"
	"shelfd/internal/errs"
	"shelfd/internal/infrastructure/persistence/sqlite/model"
	"shelfd/internal/ports"
)

// latestChapterSQL picks, for every requested series, the chapter row whose id the
// correlated subquery ranks first by coerced index. Equal maxima resolve to whichever
// row SQLite returns first; no secondary key is applied.
const latestChapterSQL = `
SELECT c.series_id, c.order_num, c.slug, c.created_at
FROM chapters AS c
WHERE c.series_id IN ?
  AND c.id = (
    SELECT c2.id FROM chapters AS c2
    WHERE c2.series_id = c.series_id
    ORDER BY c2.order_num DESC
    LIMIT 1
  )`

type CatalogRepository struct {
	db *gorm.DB
}

var _ ports.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *CatalogRepository) ListSeries(ctx context.Context, filter ports.SeriesFilter) ([]ports.Series, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := applySeriesFilter(db, db.Model(&model.Series{}), filter)
	switch filter.Sort {
	case ports.SortTitleDesc:
		query = query.Order("title desc")
	case ports.SortUpdatedDesc:
		query = query.Order("updated_at desc")
	case ports.SortViewsDesc:
		query = query.Order("views desc")
	default:
		query = query.Order("title asc")
	}
	query = query.Order("id asc")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.Series
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query series")
	}
	return withTags(db, rows)
}

func (r *CatalogRepository) CountSeries(ctx context.Context, filter ports.SeriesFilter) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := applySeriesFilter(db, db.Model(&model.Series{}), filter).Count(&total).Error; err != nil {
		return 0, errs.Wrap(err, "count series")
	}
	return total, nil
}

func (r *CatalogRepository) GetSeriesBySlug(ctx context.Context, slug string) (ports.Series, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Series{}, err
	}
	return getSeriesBySlug(db, slug)
}

func (r *CatalogRepository) SampleSeries(ctx context.Context, excludeID string, limit int) ([]ports.Series, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []ports.Series{}, nil
	}

	var rows []model.Series
	if err := db.
		Where("id <> ?", excludeID).
		Order("RANDOM()").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "sample series")
	}
	return withTags(db, rows)
}

func (r *CatalogRepository) ListChapters(ctx context.Context, seriesID string) ([]ports.Chapter, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Chapter
	if err := db.
		Where("series_id = ?", seriesID).
		Order("order_num desc").
		Order("created_at desc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query chapters")
	}

	items := make([]ports.Chapter, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapChapter(row))
	}
	return items, nil
}

func (r *CatalogRepository) GetChapter(ctx context.Context, seriesID string, slug string) (ports.Chapter, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Chapter{}, err
	}
	return getChapter(db, seriesID, slug)
}

func (r *CatalogRepository) CountChapters(ctx context.Context, seriesIDs []string) (map[string]int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(seriesIDs))
	if len(seriesIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		SeriesID string
		Total    int64
	}
	if err := db.Model(&model.Chapter{}).
		Select("series_id, COUNT(*) AS total").
		Where("series_id IN ?", seriesIDs).
		Group("series_id").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "count chapters")
	}

	for _, id := range seriesIDs {
		counts[id] = 0
	}
	for _, row := range rows {
		counts[row.SeriesID] = row.Total
	}
	return counts, nil
}

func (r *CatalogRepository) ListTags(ctx context.Context) ([]ports.TagCount, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Tag   string
		Total int64
	}
	if err := db.Model(&model.SeriesTag{}).
		Select("tag, COUNT(*) AS total").
		Where("tag <> ''").
		Group("tag").
		Order("tag asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query tag counts")
	}

	items := make([]ports.TagCount, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.TagCount{Tag: row.Tag, Count: row.Total})
	}
	return items, nil
}

func (r *CatalogRepository) DistinctStatuses(ctx context.Context) ([]string, error) {
	return r.distinctSeriesColumn(ctx, "status")
}

func (r *CatalogRepository) DistinctTypes(ctx context.Context) ([]string, error) {
	return r.distinctSeriesColumn(ctx, "type")
}

func (r *CatalogRepository) distinctSeriesColumn(ctx context.Context, column string) ([]string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, 8)
	if err := db.Model(&model.Series{}).
		Where(column+" <> ''").
		Distinct().
		Order(column+" asc").
		Pluck(column, &values).Error; err != nil {
		return nil, errs.Wrapf(err, "query distinct %s", column)
	}
	return values, nil
}

func (r *CatalogRepository) LatestChapters(ctx context.Context, seriesIDs []string) (map[string]catalog.LatestChapter, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]catalog.LatestChapter, len(seriesIDs))
	if len(seriesIDs) == 0 {
		return latest, nil
	}

	var rows []struct {
		SeriesID  string
		OrderNum  float64
		Slug      string
		CreatedAt time.Time
	}
	if err := db.Raw(latestChapterSQL, seriesIDs).Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query latest chapters")
	}

	for _, row := range rows {
		latest[row.SeriesID] = catalog.LatestChapter{
			ParentID:  row.SeriesID,
			OrderKey:  row.OrderNum,
			Slug:      row.Slug,
			CreatedAt: row.CreatedAt,
		}
	}
	return latest, nil
}

func (r *CatalogRepository) NextChapter(ctx context.Context, seriesID string, after float64) (*catalog.ChapterRef, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return neighbourChapter(db.Where("series_id = ? AND order_num > ?", seriesID, after).Order("order_num asc"), "next")
}

func (r *CatalogRepository) PrevChapter(ctx context.Context, seriesID string, before float64) (*catalog.ChapterRef, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return neighbourChapter(db.Where("series_id = ? AND order_num < ?", seriesID, before).Order("order_num desc"), "prev")
}

func (r *CatalogRepository) IncrementViews(ctx context.Context, seriesID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	// UpdateColumn leaves updated_at alone so a page view does not reorder "recently updated".
	result := db.Model(&model.Series{}).
		Where("id = ?", seriesID).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return errs.Wrap(result.Error, "increment series views")
	}
	if result.RowsAffected == 0 {
		return ports.ErrSeriesNotFound
	}
	return nil
}

func (r *CatalogRepository) UpsertSeries(ctx context.Context, input ports.SeriesUpsert) (ports.Series, error) {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return ports.Series{}, err
		}

		row := model.Series{
			ID:       input.ID,
			Slug:     strings.TrimSpace(input.Slug),
			Title:    input.Title,
			Thumb:    input.Thumb,
			Synopsis: input.Synopsis,
			Author:   input.Author,
			Type:     input.Type,
			Status:   input.Status,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "thumb", "synopsis", "author", "type", "status", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return ports.Series{}, errs.Wrap(err, "upsert series")
		}

		// On conflict the existing id is kept, so read it back by slug.
		var stored model.Series
		if err := db.Where("slug = ?", row.Slug).Take(&stored).Error; err != nil {
			return ports.Series{}, errs.Wrap(err, "reload series")
		}

		if err := db.Where("series_id = ?", stored.ID).Delete(&model.SeriesTag{}).Error; err != nil {
			return ports.Series{}, errs.Wrap(err, "delete series tags")
		}
		tags := make([]model.SeriesTag, 0, len(input.Tags))
		for _, tag := range input.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			tags = append(tags, model.SeriesTag{SeriesID: stored.ID, Tag: tag})
		}
		if len(tags) > 0 {
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tags).Error; err != nil {
				return ports.Series{}, errs.Wrap(err, "insert series tags")
			}
		}

		items, err := withTags(db, []model.Series{stored})
		if err != nil {
			return ports.Series{}, err
		}
		return items[0], nil
	}

	var saved ports.Series
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.UpsertSeries(ports.WithTxContext(ctx, tx), input)
		if err != nil {
			return err
		}
		saved = row
		return nil
	}); err != nil {
		return ports.Series{}, err
	}
	return saved, nil
}

func (r *CatalogRepository) UpsertChapter(ctx context.Context, input ports.ChapterUpsert) (ports.Chapter, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Chapter{}, err
	}

	row := model.Chapter{
		ID:       input.ID,
		SeriesID: input.SeriesID,
		Slug:     strings.TrimSpace(input.Slug),
		Title:    input.Title,
		OrderKey: input.OrderKey,
		Images:   input.Images,
		Content:  input.Content,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series_id"}, {Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "order_key", "order_num", "images", "content", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return ports.Chapter{}, errs.Wrap(err, "upsert chapter")
	}

	return getChapter(db, row.SeriesID, row.Slug)
}

func applySeriesFilter(db *gorm.DB, query *gorm.DB, filter ports.SeriesFilter) *gorm.DB {
	if title := strings.TrimSpace(filter.TitleContains); title != "" {
		query = query.Where("LOWER(title) LIKE ? ESCAPE '\\'", containsPattern(title))
	}
	query = matchColumn(query, "status", filter.Status, filter.StatusContains)
	query = matchColumn(query, "type", filter.Type, filter.TypeContains)

	for _, tag := range filter.Tags {
		normalized := catalog.NormalizeTag(tag)
		if normalized == "" {
			continue
		}
		sub := db.Model(&model.SeriesTag{}).
			Select("series_id").
			Where("REPLACE(LOWER(tag), ' ', '-') LIKE ? ESCAPE '\\'", containsPattern(normalized))
		query = query.Where("id IN (?)", sub)
	}
	return query
}

func matchColumn(query *gorm.DB, column string, value string, contains bool) *gorm.DB {
	value = strings.TrimSpace(value)
	if value == "" {
		return query
	}
	if contains {
		return query.Where("LOWER("+column+") LIKE ? ESCAPE '\\'", containsPattern(value))
	}
	return query.Where("LOWER("+column+") = ?", strings.ToLower(value))
}

func containsPattern(value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(value))
	return "%" + escaped + "%"
}

func neighbourChapter(query *gorm.DB, side string) (*catalog.ChapterRef, error) {
	var rows []model.Chapter
	if err := query.Select("slug", "title", "order_num").Limit(1).Find(&rows).Error; err != nil {
		return nil, errs.Wrapf(err, "query %s chapter", side)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &catalog.ChapterRef{
		Slug:     rows[0].Slug,
		Title:    rows[0].Title,
		OrderKey: rows[0].OrderNum,
	}, nil
}

func getSeriesBySlug(db *gorm.DB, slug string) (ports.Series, error) {
	var row model.Series
	if err := db.Where("slug = ?", slug).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Series{}, ports.ErrSeriesNotFound
		}
		return ports.Series{}, errs.Wrap(err, "query series")
	}

	items, err := withTags(db, []model.Series{row})
	if err != nil {
		return ports.Series{}, err
	}
	return items[0], nil
}

func getChapter(db *gorm.DB, seriesID string, slug string) (ports.Chapter, error) {
	var row model.Chapter
	if err := db.Where("series_id = ? AND slug = ?", seriesID, slug).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Chapter{}, ports.ErrChapterNotFound
		}
		return ports.Chapter{}, errs.Wrap(err, "query chapter")
	}
	return mapChapter(row), nil
}

// withTags loads tags for all rows in one query and maps them to ports.Series.
func withTags(db *gorm.DB, rows []model.Series) ([]ports.Series, error) {
	items := make([]ports.Series, 0, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var tagRows []model.SeriesTag
	if err := db.Session(&gorm.Session{NewDB: true}).
		Where("series_id IN ?", ids).
		Order("tag asc").
		Find(&tagRows).Error; err != nil {
		return nil, errs.Wrap(err, "query series tags")
	}

	tagsByID := make(map[string][]string, len(rows))
	for _, tag := range tagRows {
		tagsByID[tag.SeriesID] = append(tagsByID[tag.SeriesID], tag.Tag)
	}

	for _, row := range rows {
		item := mapSeries(row)
		item.Tags = tagsByID[row.ID]
		if item.Tags == nil {
			item.Tags = []string{}
		}
		items = append(items, item)
	}
	return items, nil
}

func mapSeries(row model.Series) ports.Series {
	return ports.Series{
		ID:        row.ID,
		Slug:      row.Slug,
		Title:     row.Title,
		Thumb:     row.Thumb,
		Synopsis:  row.Synopsis,
		Author:    row.Author,
		Type:      row.Type,
		Status:    row.Status,
		Views:     row.Views,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapChapter(row model.Chapter) ports.Chapter {
	images := row.Images
	if images == nil {
		images = []string{}
	}
	return ports.Chapter{
		ID:        row.ID,
		SeriesID:  row.SeriesID,
		Slug:      row.Slug,
		Title:     row.Title,
		OrderKey:  row.OrderKey,
		OrderNum:  row.OrderNum,
		Images:    images,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}
}
