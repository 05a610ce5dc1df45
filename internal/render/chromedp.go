// Package render provides the headless-browser rendering collaborator used
// for search-page navigation, plus the challenge detector that screens its
// responses.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/paperchase/paperchase/internal/retrieval"
)

// Config controls the chromedp session pool.
type Config struct {
	// PoolSize is the number of sessions, one per concurrent page fetch.
	PoolSize int
	// UserAgent is sent with every navigation.
	UserAgent string
	// NavTimeout bounds a single navigation; renders are expensive, so
	// this runs longer than the hit-lookup timeout.
	NavTimeout time.Duration
	// Headless toggles visible Chrome for debugging challenge flows.
	Headless bool
}

// Pool implements retrieval.SessionPool on top of a shared headless Chrome
// process. Each Acquire hands out an exclusively-owned tab.
type Pool struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	slots         chan struct{}
	logger        *zap.Logger
}

// NewPool launches the browser and warms it up.
func NewPool(cfg Config, logger *zap.Logger) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("render pool size must be > 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	slots := make(chan struct{}, cfg.PoolSize)
	for i := 0; i < cfg.PoolSize; i++ {
		slots <- struct{}{}
	}

	return &Pool{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		slots:         slots,
		logger:        logger,
	}, nil
}

// Acquire blocks until a session slot frees up or ctx finishes. The
// returned session owns one browser tab until Release.
func (p *Pool) Acquire(ctx context.Context) (retrieval.Session, error) {
	select {
	case <-p.slots:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render session: %w", ctx.Err())
	}
	tabCtx, tabCancel := chromedp.NewContext(p.browserCtx)
	return &session{
		pool:      p,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (p *Pool) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.browserCancel()
	p.allocCancel()
	select {
	case <-ctx.Done():
	default:
	}
	return nil
}

type session struct {
	pool      *Pool
	tabCtx    context.Context
	tabCancel context.CancelFunc
}

// Fetch navigates the tab and returns the full markup plus the visible
// body text (which, for the JSON search endpoint, is the payload).
func (s *session) Fetch(ctx context.Context, rawURL string) (retrieval.Document, error) {
	taskCtx, cancelTask := context.WithTimeout(s.tabCtx, s.pool.cfg.NavTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html, text string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(s.pool.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Text("body", &text, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return retrieval.Document{}, fmt.Errorf("chromedp run: %w", err)
	}
	return retrieval.Document{
		HTML: []byte(html),
		Text: []byte(text),
	}, nil
}

// Release closes the tab and returns the slot to the pool.
func (s *session) Release() {
	s.tabCancel()
	s.pool.slots <- struct{}{}
}

// forwardCancel propagates cancellation from the caller's context into the
// chromedp task context, which is not derived from it.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
