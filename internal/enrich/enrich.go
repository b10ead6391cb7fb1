// Package enrich resolves identifiers to detail records in bounded parallel
// batches, applies the configured filters and accumulates output rows in
// deterministic input order.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sirenscope/internal/export"
	"sirenscope/internal/filter"
	"sirenscope/internal/model"
	"sirenscope/internal/registry"
)

const (
	defaultConcurrency = 3
	defaultBatchSize   = 100
)

// Options configures one enrichment run.
type Options struct {
	// Concurrency caps the detail fetches in flight at once.
	Concurrency int
	// BatchSize groups identifiers for progress reporting and result merging.
	BatchSize int
	// Economy consults the free registry first and prefers its fields.
	Economy bool
	// Spec is the filter applied to every fetched record.
	Spec filter.Spec
}

// Stats summarizes a run.
type Stats struct {
	Total     int
	Processed int
	NotFound  int
	Failed    int
	Rows      int
	Elapsed   time.Duration
}

// Enricher drives the fetch, filter and accumulate loop.
type Enricher struct {
	pappers *registry.PappersClient
	gouv    *registry.GouvClient
	opts    Options
	log     *zap.Logger
}

// New creates an Enricher. The free client may be nil when economy mode is
// off.
func New(pappers *registry.PappersClient, gouv *registry.GouvClient, opts Options, log *zap.Logger) *Enricher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Enricher{pappers: pappers, gouv: gouv, opts: opts, log: log}
}

// Run processes the identifiers in input order. Within a batch up to
// Concurrency fetches overlap; results are re-joined into input order before
// being appended, so output order is deterministic. A single identifier
// failing never aborts the run.
func (e *Enricher) Run(ctx context.Context, sirens []string) ([]export.Row, *Stats, error) {
	stats := &Stats{Total: len(sirens)}
	start := time.Now()
	var out []export.Row

	for offset := 0; offset < len(sirens); offset += e.opts.BatchSize {
		end := min(offset+e.opts.BatchSize, len(sirens))
		batch := sirens[offset:end]

		results := make([][]export.Row, len(batch))
		outcomes := make([]error, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Concurrency)
		for i, siren := range batch {
			i, siren := i, siren
			g.Go(func() error {
				rec, err := e.fetchOne(gctx, siren)
				if err != nil {
					outcomes[i] = err
					return nil
				}
				results[i] = e.opts.Spec.Apply(rec)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return out, stats, err
		}
		if ctx.Err() != nil {
			return out, stats, ctx.Err()
		}

		// Merge after batch completion, on the coordinating goroutine only.
		for i, rows := range results {
			siren := batch[i]
			switch err := outcomes[i]; {
			case err == nil:
				stats.Processed++
				stats.Rows += len(rows)
				out = append(out, rows...)
			case errors.Is(err, registry.ErrNotFound):
				stats.Processed++
				stats.NotFound++
			default:
				stats.Failed++
				e.log.Warn("detail fetch failed, skipping identifier",
					zap.String("siren", siren), zap.Error(err))
			}
		}

		done := stats.Processed + stats.Failed
		e.log.Info("progress",
			zap.Int("done", done),
			zap.Int("total", stats.Total),
			zap.Int("percent", done*100/max(stats.Total, 1)),
			zap.Int("rows", stats.Rows))
	}

	stats.Elapsed = time.Since(start)
	return out, stats, nil
}

// fetchOne resolves one identifier. In economy mode the free registry is
// consulted first and any field it supplies wins over the paid record; paid
// values fill whatever the free lookup left empty.
func (e *Enricher) fetchOne(ctx context.Context, siren string) (*model.Company, error) {
	if e.opts.Economy && e.gouv != nil && e.opts.Spec.Mode != filter.ModeCompanies {
		return e.fetchEconomy(ctx, siren)
	}

	var hint registry.Hint
	if e.opts.Economy && e.gouv != nil {
		hint = e.gouv.CompanyHint(ctx, siren)
	}

	rec, err := e.pappers.GetCompany(ctx, siren)
	if err != nil {
		return nil, err
	}

	if hint.Name != "" {
		rec.Name = hint.Name
	}
	if hint.City != "" {
		rec.City = hint.City
	}
	if hint.NAFCode != "" {
		rec.NAFCode = hint.NAFCode
	}
	return rec, nil
}

// fetchEconomy avoids the per-company detail endpoint entirely: company
// metadata comes from the free registry and the directors from the
// per-result-billed directors search, which is an order of magnitude cheaper
// per director than a detail record. A 404 from the directors search means
// no registered directors, a normal outcome.
func (e *Enricher) fetchEconomy(ctx context.Context, siren string) (*model.Company, error) {
	hint := e.gouv.CompanyHint(ctx, siren)

	var maxBirth string
	if cut := e.opts.Spec.Cutoff; cut != nil {
		// Upstream max is an inclusive coarse bound; directorPasses still
		// applies the strict cutoff locally.
		maxBirth = fmt.Sprintf("%02d-%02d-%04d", cut.Day, cut.Month, cut.Year)
	}

	directors, err := e.pappers.SearchDirectors(ctx, siren, maxBirth)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}

	return &model.Company{
		Siren:     siren,
		Name:      hint.Name,
		City:      hint.City,
		NAFCode:   hint.NAFCode,
		Directors: directors,
	}, nil
}

// PrintSummary logs the final run summary. Always called, including on zero
// results.
func (e *Enricher) PrintSummary(stats *Stats) {
	e.log.Info("enrichment summary",
		zap.Int("identifiers", stats.Total),
		zap.Int("processed", stats.Processed),
		zap.Int("not_found", stats.NotFound),
		zap.Int("failed", stats.Failed),
		zap.Int("rows", stats.Rows),
		zap.Duration("elapsed", stats.Elapsed.Round(time.Second)))
}
