// Package retrieval implements the paginated search retrieval pipeline:
// query compilation, page fetching with retry, per-record hit enrichment,
// and the pagination orchestrator that streams enriched records to a
// consumer.
package retrieval

import "time"

// Query is the semantic search request as the operator states it. It is
// validated and compiled once; the resulting parameters are reused for the
// whole run.
type Query struct {
	// Keyword is the search phrase; required.
	Keyword string
	// Years holds zero, one, or two entries: empty means no date filter,
	// one entry narrows to a single year, two entries form an inclusive
	// [start, end] range.
	Years []int
	// Location is an optional lower-case country code ("us") or
	// country-region code ("us-ny").
	Location string
	// MaxPages caps the number of result pages fetched; zero means
	// unbounded.
	MaxPages int
}

// MatchCount is the per-record keyword occurrence count. Unresolved marks a
// record whose lookup exhausted its retry budget without a valid answer.
type MatchCount int

// Unresolved is the sentinel for an exhausted or skipped hit lookup.
const Unresolved MatchCount = -1

// Resolved reports whether the count carries a real value.
func (m MatchCount) Resolved() bool {
	return m >= 0
}

// RawRecord is one search result as returned by the remote index, before
// enrichment.
type RawRecord struct {
	PublicationName string
	PageID          string
	PageNumber      string
	Date            string
	Location        string
	ViewerURL       string
}

// EnrichedRecord is a RawRecord with its keyword match count attached.
type EnrichedRecord struct {
	RawRecord
	MatchCount MatchCount
}

// PageOutcome is the result of one successful page fetch. It is consumed
// by the orchestrator immediately and then discarded.
type PageOutcome struct {
	Records          []EnrichedRecord
	TotalRecordCount int
	NextCursor       string
}

// ProgressStats carries timing aggregates for a progress signal.
type ProgressStats struct {
	TimeElapsed time.Duration
	AvgPageTime time.Duration
}

// Progress is emitted once per completed batch.
type Progress struct {
	Current    int
	Total      int
	Percentage float64
	Stats      ProgressStats
}

// Summary is emitted exactly once when a run terminates, successfully or
// not.
type Summary struct {
	TimeElapsed       time.Duration
	PerBatchDurations []time.Duration
}

// Emitter receives the three signals a run produces. The orchestrator is
// the only writer; consumers only read. Article may fire many times per
// batch, Progress once per batch, Complete exactly once per run.
type Emitter interface {
	Article(rec EnrichedRecord)
	Progress(p Progress)
	Complete(s Summary)
}
