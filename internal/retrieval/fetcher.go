package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Archiver persists raw response payloads for later inspection. Optional;
// archive failures never fail the fetch.
type Archiver interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// PageFetcherConfig wires the collaborators a PageFetcher needs.
type PageFetcherConfig struct {
	// SearchURL is the remote search endpoint, without query parameters.
	SearchURL string
	// ArchivePrefix namespaces archived payload objects, typically the
	// run ID. Ignored when Archiver is nil.
	ArchivePrefix string
}

// PageFetcher retrieves one page of search results through the rendering
// collaborator, detects anti-bot challenges, and enriches the page's
// records before returning the outcome.
type PageFetcher struct {
	cfg      PageFetcherConfig
	sessions SessionPool
	detector ChallengeDetector
	enricher *Enricher
	policy   RetryPolicy
	archiver Archiver
	logger   *zap.Logger
}

// NewPageFetcher builds a PageFetcher. archiver may be nil.
func NewPageFetcher(
	cfg PageFetcherConfig,
	sessions SessionPool,
	detector ChallengeDetector,
	enricher *Enricher,
	policy RetryPolicy,
	archiver Archiver,
	logger *zap.Logger,
) *PageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageFetcher{
		cfg:      cfg,
		sessions: sessions,
		detector: detector,
		enricher: enricher,
		policy:   policy,
		archiver: archiver,
		logger:   logger,
	}
}

// Fetch retrieves page pageIndex, retrying transient failures with
// backoff. After the attempt ceiling it returns a KindFatal error.
func (f *PageFetcher) Fetch(ctx context.Context, pageIndex int, params *Params, query Query) (PageOutcome, error) {
	var lastErr error
	for attempt := 0; attempt < f.policy.MaxAttempts(); attempt++ {
		outcome, err := f.attempt(ctx, pageIndex, params, query)
		if err == nil {
			pagesFetched.Inc()
			return outcome, nil
		}
		lastErr = err

		kind := f.policy.Classify(err)
		if !f.policy.Retryable(kind) {
			return PageOutcome{}, WrapError(KindFatal, fmt.Sprintf("page %d fetch failed", pageIndex), err)
		}
		if kind == KindChallengeDetected {
			challengesDetected.Inc()
			f.logger.Warn("challenge served instead of results",
				zap.Int("page", pageIndex),
				zap.Int("attempt", attempt+1),
			)
		} else {
			f.logger.Info("page fetch attempt failed",
				zap.Int("page", pageIndex),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
		if attempt+1 < f.policy.MaxAttempts() {
			pageRetries.Inc()
			if !pause(ctx, f.policy.Backoff(attempt)) {
				break
			}
		}
	}
	return PageOutcome{}, WrapError(KindFatal,
		fmt.Sprintf("page %d retry budget exhausted after %d attempts", pageIndex, f.policy.MaxAttempts()),
		lastErr,
	)
}

// attempt performs one fetch: acquire a session, render the request,
// screen for challenges, parse the payload, and enrich the records. The
// session is released on every exit path.
func (f *PageFetcher) attempt(ctx context.Context, pageIndex int, params *Params, query Query) (PageOutcome, error) {
	sess, err := f.sessions.Acquire(ctx)
	if err != nil {
		return PageOutcome{}, fmt.Errorf("acquire render session: %w", err)
	}
	defer sess.Release()

	doc, err := sess.Fetch(ctx, f.cfg.SearchURL+"?"+params.Encode())
	if err != nil {
		return PageOutcome{}, fmt.Errorf("render page %d: %w", pageIndex, err)
	}

	if f.detector != nil && f.detector.IsChallenge(doc) {
		return PageOutcome{}, NewError(KindChallengeDetected, "human verification interstitial")
	}

	payload, err := parseSearchPayload(doc.Text)
	if err != nil {
		return PageOutcome{}, err
	}
	if len(payload.Records) == 0 {
		return PageOutcome{}, NewError(KindRetryable, "no records")
	}

	f.archive(ctx, pageIndex, doc.Text)

	enriched := f.enricher.Enrich(ctx, payload.rawRecords(), query.Keyword)
	return PageOutcome{
		Records:          enriched,
		TotalRecordCount: payload.RecordCount,
		NextCursor:       payload.NextStart,
	}, nil
}

func (f *PageFetcher) archive(ctx context.Context, pageIndex int, payload []byte) {
	if f.archiver == nil {
		return
	}
	name := fmt.Sprintf("%s/page-%04d.json", f.cfg.ArchivePrefix, pageIndex)
	if err := f.archiver.Save(ctx, name, payload); err != nil {
		f.logger.Warn("raw payload archive failed",
			zap.Int("page", pageIndex),
			zap.String("object", name),
			zap.Error(err),
		)
	}
}
