package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// runState is the orchestrator's pagination state machine.
type runState int

const (
	stateRunning runState = iota
	// stateDraining: the final in-flight batch; no new pages are scheduled.
	stateDraining
	stateDone
)

// OrchestratorConfig tunes a retrieval run.
type OrchestratorConfig struct {
	// RunID identifies this run in logs, archives, and notifications.
	RunID uuid.UUID
	// ConcurrentPages is the number of page fetches issued per batch.
	ConcurrentPages int
	// ResultsPerPage is the page size requested from the remote index;
	// used to derive the total page count from the reported record count.
	ResultsPerPage int
	// BatchDelay paces consecutive batches against the rate-sensitive
	// remote service; zero disables pacing.
	BatchDelay time.Duration
}

// Orchestrator drives a retrieval run: it fans out batches of concurrent
// page fetches, advances the pagination cursor, and emits article,
// progress, and completion signals to its consumer.
type Orchestrator struct {
	cfg      OrchestratorConfig
	fetcher  Fetcher
	emitter  Emitter
	sessions SessionPool
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewOrchestrator builds an Orchestrator. sessions may be nil when the
// caller owns pool shutdown itself.
func NewOrchestrator(
	cfg OrchestratorConfig,
	fetcher Fetcher,
	emitter Emitter,
	sessions SessionPool,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.ConcurrentPages <= 0 {
		cfg.ConcurrentPages = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchDelay), 1)
	}
	return &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		emitter:  emitter,
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
	}
}

// Run executes one retrieval for query. The completion signal fires
// exactly once on every path, and the session pool is released before any
// fatal error is returned to the caller. The consumer therefore sees
// either a complete run or an explicit error after cleanup; never a silent
// partial result.
func (o *Orchestrator) Run(ctx context.Context, query Query) (err error) {
	stats := NewStatsTracker()
	defer o.finish(stats)

	params, err := CompileQuery(query, o.cfg.ResultsPerPage)
	if err != nil {
		return err
	}

	o.logger.Info("retrieval run starting",
		zap.String("run_id", o.cfg.RunID.String()),
		zap.String("keyword", query.Keyword),
		zap.Ints("years", query.Years),
		zap.String("location", query.Location),
		zap.Int("max_pages", query.MaxPages),
		zap.Int("concurrent_pages", o.cfg.ConcurrentPages),
	)

	state := stateRunning
	completed := 0
	totalPages := 0

	for state == stateRunning {
		batch := o.batchSize(completed, totalPages, query.MaxPages)
		if batch == 0 {
			break
		}
		if o.exhaustsBudget(completed+batch, totalPages, query.MaxPages) {
			state = stateDraining
		}

		start := time.Now()
		outcomes, err := o.fetchBatch(ctx, completed, batch, params, query)
		if err != nil {
			// All-or-nothing batch contract: one exhausted page fails the
			// run. The deferred finish still emits completion and releases
			// the pool before this error reaches the caller.
			return fmt.Errorf("batch starting at page %d: %w", completed, err)
		}
		stats.RecordBatch(time.Since(start), batch)

		for _, outcome := range outcomes {
			for _, rec := range outcome.Records {
				o.emitter.Article(rec)
			}
			if outcome.NextCursor != "" {
				params.SetCursor(outcome.NextCursor)
			}
		}
		completed += batch
		totalPages = o.totalPages(outcomes[0].TotalRecordCount)

		o.emitProgress(completed, totalPages, stats)

		if completed >= totalPages {
			state = stateDraining
		}
		if state != stateRunning {
			break
		}
		if waitErr := o.waitBatchDelay(ctx); waitErr != nil {
			return waitErr
		}
	}

	return nil
}

// batchSize returns how many pages to schedule next, bounded by the
// concurrency setting, the max-pages budget, and the known total.
func (o *Orchestrator) batchSize(completed, totalPages, maxPages int) int {
	size := o.cfg.ConcurrentPages
	if maxPages > 0 && maxPages-completed < size {
		size = maxPages - completed
	}
	if totalPages > 0 && totalPages-completed < size {
		size = totalPages - completed
	}
	if size < 0 {
		return 0
	}
	return size
}

func (o *Orchestrator) exhaustsBudget(scheduled, totalPages, maxPages int) bool {
	if maxPages > 0 && scheduled >= maxPages {
		return true
	}
	return totalPages > 0 && scheduled >= totalPages
}

// fetchBatch issues size concurrent page fetches starting at firstPage and
// waits for all of them. The batch fails as a unit: siblings are not
// canceled when one task fails, and the first error is surfaced only after
// every task finished.
func (o *Orchestrator) fetchBatch(ctx context.Context, firstPage, size int, params *Params, query Query) ([]PageOutcome, error) {
	outcomes := make([]PageOutcome, size)
	var g errgroup.Group
	for i := 0; i < size; i++ {
		i := i
		g.Go(func() error {
			outcome, err := o.fetcher.Fetch(ctx, firstPage+i, params, query)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (o *Orchestrator) totalPages(recordCount int) int {
	if o.cfg.ResultsPerPage <= 0 {
		return 0
	}
	return (recordCount + o.cfg.ResultsPerPage - 1) / o.cfg.ResultsPerPage
}

func (o *Orchestrator) emitProgress(completed, totalPages int, stats *StatsTracker) {
	pct := 0.0
	if totalPages > 0 {
		pct = float64(completed) / float64(totalPages) * 100
		if pct > 100 {
			pct = 100
		}
	}
	snapshot := stats.Snapshot()
	o.logger.Info("batch complete",
		zap.Int("pages_completed", completed),
		zap.Int("total_pages", totalPages),
		zap.Float64("percentage", pct),
		zap.Duration("elapsed", snapshot.TimeElapsed),
		zap.Duration("avg_page_time", snapshot.AvgPageTime),
	)
	o.emitter.Progress(Progress{
		Current:    completed,
		Total:      totalPages,
		Percentage: pct,
		Stats:      snapshot,
	})
}

func (o *Orchestrator) waitBatchDelay(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("batch pacing wait: %w", err)
	}
	return nil
}

// finish runs on every exit path: it emits the completion signal with the
// stats gathered so far and releases the rendering session pool.
func (o *Orchestrator) finish(stats *StatsTracker) {
	snapshot := stats.Snapshot()
	o.emitter.Complete(Summary{
		TimeElapsed:       snapshot.TimeElapsed,
		PerBatchDurations: stats.PerBatch(),
	})
	if o.sessions != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := o.sessions.Close(closeCtx); err != nil {
			o.logger.Warn("session pool close failed", zap.Error(err))
		}
	}
	o.logger.Info("retrieval run finished",
		zap.String("run_id", o.cfg.RunID.String()),
		zap.Duration("elapsed", snapshot.TimeElapsed),
		zap.Int("batches", len(stats.PerBatch())),
	)
}
