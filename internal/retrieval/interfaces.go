package retrieval

import "context"

// Document is the rendered response for one navigation: the full markup
// for challenge inspection plus the visible text, which for the search
// endpoint is the JSON payload itself.
type Document struct {
	HTML []byte
	Text []byte
}

// Session is an exclusively-owned rendering session. The holder must call
// Release on every exit path.
type Session interface {
	Fetch(ctx context.Context, rawURL string) (Document, error)
	Release()
}

// SessionPool hands out rendering sessions, one per concurrent page-fetch
// slot. Close tears down the underlying browser resources.
type SessionPool interface {
	Acquire(ctx context.Context) (Session, error)
	Close(ctx context.Context) error
}

// ChallengeDetector inspects response markup for an anti-automation
// interstitial served in place of results.
type ChallengeDetector interface {
	IsChallenge(doc Document) bool
}

// HitCounter performs the per-item lookup: the keyword occurrence count
// for one page identifier.
type HitCounter interface {
	Count(ctx context.Context, pageID, keyword string) (int, error)
}

// Fetcher retrieves one page of search results. Implemented by PageFetcher;
// declared as an interface so the orchestrator can be exercised with fakes.
type Fetcher interface {
	Fetch(ctx context.Context, pageIndex int, params *Params, query Query) (PageOutcome, error)
}
