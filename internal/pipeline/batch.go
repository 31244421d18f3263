package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/lensfind/internal/catalog"
	"github.com/nao1215/lensfind/internal/model"
)

// defaultConcurrency is the batch concurrency used when none is configured.
const defaultConcurrency = 10

// BatchProcessor analyses multiple catalogs concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each catalog path, so
	// per-catalog settings can be applied and no state leaks between runs.
	pipelineFactory func(path string) *Pipeline

	// concurrency is the maximum number of concurrent analyses.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed reports.
	// Access is synchronized via mutex.
	results []*model.AnalysisReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent analyses.
// Non-positive values keep the default of 10.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called once per catalog path.
func NewBatchProcessor(pipelineFactory func(path string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     defaultConcurrency,
		results:         make([]*model.AnalysisReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// run analyses one catalog. The returned report is never nil.
func (bp *BatchProcessor) run(ctx context.Context, path string) *model.AnalysisReport {
	report := model.NewAnalysisReport(catalog.NameFromPath(path), path)
	if err := bp.pipelineFactory(path).Execute(ctx, report); err != nil {
		bp.logger.Warn("analysis failed",
			"catalog", path,
			"error", err,
		)
	}
	return report
}

// ProcessBatch analyses the catalogs at paths concurrently. Reports are
// returned in the order of paths; a failed analysis still yields a report
// carrying its error.
//
// The error return is non-nil only when ctx was cancelled before every
// catalog was started. Slots for catalogs that never started are nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, paths []string) ([]*model.AnalysisReport, error) {
	bp.logger.Info("starting batch processing",
		"total_catalogs", len(paths),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.AnalysisReport, len(paths))
	bp.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("analysing catalog",
				"catalog", path,
				"index", i+1,
				"total", len(paths),
			)

			report := bp.run(ctx, path)

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			// Failures are recorded in the report; keep the batch going.
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_catalogs", len(paths),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback analyses the catalogs and calls callback for
// each completed report together with the index of its path. callback runs
// on the worker goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	paths []string,
	callback func(report *model.AnalysisReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_catalogs", len(paths),
		"concurrency", bp.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			callback(bp.run(ctx, path), i)
			return nil
		})
	}

	return g.Wait()
}
