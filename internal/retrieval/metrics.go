package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesFetched counts search pages retrieved successfully.
	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperchase_pages_fetched_total",
		Help: "The total number of search result pages fetched successfully.",
	})
	// pageRetries counts page-fetch attempts that failed and were retried.
	pageRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperchase_page_retries_total",
		Help: "The total number of page fetch attempts that were retried.",
	})
	// challengesDetected counts anti-automation interstitials encountered.
	challengesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperchase_challenges_detected_total",
		Help: "The total number of human-verification challenges served instead of results.",
	})
	// hitsResolved counts per-record lookups that produced a match count.
	hitsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperchase_hits_resolved_total",
		Help: "The total number of keyword hit lookups that resolved.",
	})
	// hitsUnresolved counts lookups that exhausted their retry budget.
	hitsUnresolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperchase_hits_unresolved_total",
		Help: "The total number of keyword hit lookups left unresolved.",
	})
)
