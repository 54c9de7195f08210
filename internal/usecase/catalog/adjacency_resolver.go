package catalog

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	domaincatalog "shelfd/internal/domain/catalog"
	"shelfd/internal/errs"
	"shelfd/internal/infrastructure/metrics"
	"shelfd/internal/ports"
)

// AdjacencyResolver finds the chapters on either side of a reference index.
type AdjacencyResolver struct {
	query   ports.ChapterQuery
	metrics *metrics.Metrics
}

func NewAdjacencyResolver(query ports.ChapterQuery, m *metrics.Metrics) *AdjacencyResolver {
	return &AdjacencyResolver{query: query, metrics: m}
}

// Resolve issues the next and prev lookups concurrently. orderKey is already in
// the coerced numeric domain. Either failure fails the call.
func (r *AdjacencyResolver) Resolve(ctx context.Context, seriesID string, orderKey float64) (domaincatalog.Adjacency, error) {
	if ctx == nil {
		return domaincatalog.Adjacency{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domaincatalog.Adjacency{}, errs.Wrap(err, "check context")
	}
	if r.query == nil {
		return domaincatalog.Adjacency{}, errors.New("chapter query is required")
	}

	started := time.Now()
	defer r.metrics.ObserveResolver("adjacency", started)

	var out domaincatalog.Adjacency
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		next, err := r.query.NextChapter(gctx, seriesID, orderKey)
		if err != nil {
			return errs.Wrap(err, "resolve next chapter")
		}
		out.Next = next
		return nil
	})
	g.Go(func() error {
		prev, err := r.query.PrevChapter(gctx, seriesID, orderKey)
		if err != nil {
			return errs.Wrap(err, "resolve prev chapter")
		}
		out.Prev = prev
		return nil
	})
	if err := g.Wait(); err != nil {
		return domaincatalog.Adjacency{}, err
	}
	return out, nil
}
