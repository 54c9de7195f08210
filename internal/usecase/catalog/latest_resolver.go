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

// LatestResolver attaches each series' highest-index chapter to a batch of cards.
//
// With batchSize 0 the whole batch is resolved by one grouped query, whatever its
// length. A positive batchSize splits the ids into several grouped queries of at
// most that many ids. When two chapters share the maximum index, which one is
// returned is unspecified.
type LatestResolver struct {
	query     ports.ChapterQuery
	batchSize int
	metrics   *metrics.Metrics
}

func NewLatestResolver(query ports.ChapterQuery, batchSize int, m *metrics.Metrics) *LatestResolver {
	if batchSize < 0 {
		batchSize = 0
	}
	return &LatestResolver{
		query:     query,
		batchSize: batchSize,
		metrics:   m,
	}
}

// Attach returns cards in input order, each with LatestChild set or nil. Any query
// failure fails the whole call; no partial result is returned.
func (r *LatestResolver) Attach(ctx context.Context, cards []SeriesCard) ([]LatestCard, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if r.query == nil {
		return nil, errors.New("chapter query is required")
	}
	if len(cards) == 0 {
		return []LatestCard{}, nil
	}

	started := time.Now()
	defer r.metrics.ObserveResolver("latest", started)
	r.metrics.ObserveBatch(len(cards))

	ids := make([]string, 0, len(cards))
	seen := make(map[string]struct{}, len(cards))
	for _, card := range cards {
		if _, ok := seen[card.ID]; ok {
			continue
		}
		seen[card.ID] = struct{}{}
		ids = append(ids, card.ID)
	}

	latest := make(map[string]domaincatalog.LatestChapter, len(ids))
	for _, chunk := range chunkIDs(ids, r.batchSize) {
		found, err := r.query.LatestChapters(ctx, chunk)
		if err != nil {
			return nil, errs.Wrap(err, "resolve latest chapters")
		}
		for id, view := range found {
			latest[id] = view
		}
	}

	out := make([]LatestCard, 0, len(cards))
	for _, card := range cards {
		item := LatestCard{SeriesCard: card}
		if view, ok := latest[card.ID]; ok {
			item.LatestChild = &view
		}
		out = append(out, item)
	}
	return out, nil
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 || len(ids) <= size {
		return [][]string{ids}
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
