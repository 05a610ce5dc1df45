// Package hits implements the per-item lookup client: the keyword
// occurrence count for a single page identifier.
package hits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/paperchase/paperchase/internal/retrieval"
)

// Config controls the lookup client.
type Config struct {
	// BaseURL is the hit-count endpoint, without query parameters.
	BaseURL string
	// UserAgent matches the rendering collaborator so lookups blend in
	// with the browser session's traffic.
	UserAgent string
	// Timeout bounds one lookup call; lookups are plain HTTP GETs and run
	// much shorter than page renders.
	Timeout time.Duration
	// QPS caps the lookup request rate; zero disables the cap.
	QPS float64
}

// Client performs hit-count lookups. It implements retrieval.HitCounter.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a Client around the default transport.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hits base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Count fetches the occurrence count for pageID. The expected response is
// a nested JSON array whose first element's length is the count; any other
// shape is reported as a retryable failure.
func (c *Client) Count(ctx context.Context, pageID, keyword string) (int, error) {
	if pageID == "" {
		return 0, retrieval.NewError(retrieval.KindRetryable, "page id is empty")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("hit lookup rate wait: %w", err)
		}
	}

	q := url.Values{}
	q.Set("images", pageID)
	q.Set("terms", keyword)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build hit request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, retrieval.WrapError(retrieval.KindRetryable, "hit lookup request failed", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return 0, retrieval.NewError(retrieval.KindRetryable,
			fmt.Sprintf("hit lookup returned status %d for page %s", resp.StatusCode, pageID))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, retrieval.WrapError(retrieval.KindRetryable, "read hit response", err)
	}
	return parseHitPayload(body)
}

// parseHitPayload extracts the count from the nested-array response shape.
func parseHitPayload(body []byte) (int, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return 0, retrieval.WrapError(retrieval.KindRetryable, "hit payload is not an array", err)
	}
	if len(outer) == 0 {
		return 0, retrieval.NewError(retrieval.KindRetryable, "hit payload is empty")
	}
	var inner []json.RawMessage
	if err := json.Unmarshal(outer[0], &inner); err != nil {
		return 0, retrieval.WrapError(retrieval.KindRetryable, "hit payload first element is not an array", err)
	}
	return len(inner), nil
}
