package retrieval

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Enricher attaches keyword match counts to raw records via a bounded
// fan-out of per-record lookups. A single record's failure never fails the
// page: an exhausted lookup degrades to the Unresolved sentinel.
type Enricher struct {
	hits          HitCounter
	policy        RetryPolicy
	maxConcurrent int
	logger        *zap.Logger
}

// NewEnricher builds an Enricher. maxConcurrent bounds in-flight lookups
// independently of the page-level concurrency.
func NewEnricher(hits HitCounter, policy RetryPolicy, maxConcurrent int, logger *zap.Logger) *Enricher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		hits:          hits,
		policy:        policy,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Enrich resolves the match count for every record carrying a page
// identifier. Records without one pass through Unresolved without
// consuming a lookup slot. Output order matches input order.
func (e *Enricher) Enrich(ctx context.Context, records []RawRecord, keyword string) []EnrichedRecord {
	out := make([]EnrichedRecord, len(records))
	sem := make(chan struct{}, e.maxConcurrent)
	var wg sync.WaitGroup

	for i, rec := range records {
		out[i] = EnrichedRecord{RawRecord: rec, MatchCount: Unresolved}
		if rec.PageID == "" {
			continue
		}
		wg.Add(1)
		go func(i int, rec RawRecord) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			out[i].MatchCount = e.lookup(ctx, rec.PageID, keyword)
		}(i, rec)
	}
	wg.Wait()

	resolved := 0
	for _, rec := range out {
		if rec.MatchCount.Resolved() {
			resolved++
			hitsResolved.Inc()
		} else {
			hitsUnresolved.Inc()
		}
	}
	e.logger.Info("hit enrichment finished",
		zap.String("keyword", keyword),
		zap.Int("records", len(records)),
		zap.Int("resolved", resolved),
		zap.Int("unresolved", len(records)-resolved),
	)
	return out
}

// lookup retries a single hit-count call up to the policy ceiling and
// returns Unresolved when the budget runs out.
func (e *Enricher) lookup(ctx context.Context, pageID, keyword string) MatchCount {
	for attempt := 0; attempt < e.policy.MaxAttempts(); attempt++ {
		count, err := e.hits.Count(ctx, pageID, keyword)
		if err == nil && count >= 0 {
			return MatchCount(count)
		}
		kind := e.policy.Classify(err)
		e.logger.Debug("hit lookup attempt failed",
			zap.String("page_id", pageID),
			zap.Int("attempt", attempt+1),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
		if !e.policy.Retryable(kind) {
			break
		}
		if attempt+1 < e.policy.MaxAttempts() {
			if !pause(ctx, e.policy.Backoff(attempt)) {
				break
			}
		}
	}
	return Unresolved
}

// pause sleeps for delay unless the context finishes first; it reports
// whether the full delay elapsed.
func pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
