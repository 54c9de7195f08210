package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"shelfd/internal/bootstrap/logging"
	domaincatalog "shelfd/internal/domain/catalog"
	"shelfd/internal/errs"
	"shelfd/internal/ports"
)

// CatalogFile is the document accepted by the seed command.
type CatalogFile struct {
	Series []SeriesEntry `yaml:"series" toml:"series"`
}

type SeriesEntry struct {
	Slug     string         `yaml:"slug" toml:"slug"`
	Title    string         `yaml:"title" toml:"title"`
	Thumb    string         `yaml:"thumb" toml:"thumb"`
	Synopsis string         `yaml:"synopsis" toml:"synopsis"`
	Author   string         `yaml:"author" toml:"author"`
	Type     string         `yaml:"type" toml:"type"`
	Status   string         `yaml:"status" toml:"status"`
	Tags     []string       `yaml:"tags" toml:"tags"`
	Chapters []ChapterEntry `yaml:"chapters" toml:"chapters"`
}

// ChapterEntry.Index may be written as a number or as text such as "Chapter 12".
type ChapterEntry struct {
	Slug    string   `yaml:"slug" toml:"slug"`
	Title   string   `yaml:"title" toml:"title"`
	Index   any      `yaml:"index" toml:"index"`
	Images  []string `yaml:"images" toml:"images"`
	Content string   `yaml:"content" toml:"content"`
}

type ImportResult struct {
	Series   int
	Chapters int
}

// FormatFromPath maps a file extension to a catalog format name.
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// DecodeCatalog reads a yaml or toml catalog and validates it.
func DecodeCatalog(r io.Reader, format string) (CatalogFile, error) {
	if r == nil {
		return CatalogFile{}, errors.New("catalog reader is required")
	}

	var file CatalogFile
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return CatalogFile{}, errs.Wrap(err, "decode yaml catalog")
		}
	case "toml":
		if err := toml.NewDecoder(r).Decode(&file); err != nil {
			return CatalogFile{}, errs.Wrap(err, "decode toml catalog")
		}
	default:
		return CatalogFile{}, errs.Wrapf(domaincatalog.ErrUnsupportedFile, "format %q", format)
	}

	if err := file.Validate(); err != nil {
		return CatalogFile{}, err
	}
	return file, nil
}

func (f CatalogFile) Validate() error {
	for i, series := range f.Series {
		if strings.TrimSpace(series.Slug) == "" {
			return errs.Wrapf(domaincatalog.ErrSlugRequired, "series[%d]", i)
		}
		if strings.TrimSpace(series.Title) == "" {
			return errs.Wrapf(domaincatalog.ErrTitleRequired, "series %q", series.Slug)
		}

		seen := make(map[string]struct{}, len(series.Chapters))
		for j, chapter := range series.Chapters {
			slug := strings.TrimSpace(chapter.Slug)
			if slug == "" {
				return errs.Wrapf(domaincatalog.ErrSlugRequired, "series %q chapter[%d]", series.Slug, j)
			}
			if _, ok := seen[slug]; ok {
				return errs.Wrapf(domaincatalog.ErrDuplicateChapter, "series %q chapter %q", series.Slug, slug)
			}
			seen[slug] = struct{}{}
		}
	}
	return nil
}

// ImportCatalog upserts every series, its tags and its chapters in one
// transaction. Re-importing the same file keeps existing ids.
func (s *Service) ImportCatalog(ctx context.Context, file CatalogFile) (ImportResult, error) {
	if err := s.ready(ctx); err != nil {
		return ImportResult{}, err
	}
	if s.uow == nil {
		return ImportResult{}, errors.New("unit of work is required")
	}
	if err := file.Validate(); err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		result = ImportResult{}
		for _, entry := range file.Series {
			series, err := s.repo.UpsertSeries(txCtx, ports.SeriesUpsert{
				ID:       s.newID(),
				Slug:     strings.TrimSpace(entry.Slug),
				Title:    strings.TrimSpace(entry.Title),
				Thumb:    entry.Thumb,
				Synopsis: entry.Synopsis,
				Author:   entry.Author,
				Type:     entry.Type,
				Status:   entry.Status,
				Tags:     entry.Tags,
			})
			if err != nil {
				return errs.Wrapf(err, "import series %q", entry.Slug)
			}
			result.Series++

			for _, chapter := range entry.Chapters {
				if _, err := s.repo.UpsertChapter(txCtx, ports.ChapterUpsert{
					ID:       s.newID(),
					SeriesID: series.ID,
					Slug:     strings.TrimSpace(chapter.Slug),
					Title:    chapter.Title,
					OrderKey: domaincatalog.FormatOrderKey(chapter.Index),
					Images:   chapter.Images,
					Content:  chapter.Content,
				}); err != nil {
					return errs.Wrapf(err, "import chapter %q of %q", chapter.Slug, entry.Slug)
				}
				result.Chapters++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	logging.Info(ctx, "catalog imported",
		slog.String("component", "catalog.ingest"),
		slog.Int("series", result.Series),
		slog.Int("chapters", result.Chapters),
	)
	return result, nil
}

func newUUID() string {
	return uuid.NewString()
}
