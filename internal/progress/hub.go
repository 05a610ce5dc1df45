package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering and delivery for the Hub.
type Config struct {
	// BufferSize is the size of the internal channel (default 1024).
	BufferSize int
	// MaxBatchEvents caps the events handed to a sink per Consume call
	// (default 256).
	MaxBatchEvents int
	// SinkTimeout is the per-sink timeout while flushing (default 10s).
	SinkTimeout time.Duration
	// Logger is an optional structured logger used for warnings.
	Logger *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 256
	defaultSinkTimeout    = 10 * time.Second
)

// Hub fans the run's signal stream out to registered sinks, preserving
// emission order. Articles feed exporters and must not be lost, so unlike
// a metrics-only pipeline, Emit applies backpressure instead of dropping
// when the buffer fills.
type Hub struct {
	cfg    Config
	sinks  []Sink
	events chan Event
	doneCh chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
}

// NewHub initializes a Hub and starts the background delivery goroutine.
// Emit must not be called after Close.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		events: make(chan Event, cfg.BufferSize),
		doneCh: make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Emit enqueues an Event for delivery, blocking when the buffer is full.
// Invalid events are discarded with a debug log.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid run event", zap.Error(err))
		return
	}
	h.events <- evt
}

// Close drains remaining events, flushes and closes the sinks, and blocks
// until the background goroutine exits. Safe to call multiple times.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		close(h.events)
	})
	select {
	case <-h.doneCh:
	case <-ctx.Done():
		return fmt.Errorf("hub close wait: %w", ctx.Err())
	}
	return h.closeSinks(ctx)
}

// run delivers events to the sinks in order, batching opportunistically:
// whatever is queued when a flush starts goes out together, up to the
// batch cap.
func (h *Hub) run() {
	defer close(h.doneCh)
	batch := make([]Event, 0, h.cfg.MaxBatchEvents)
	for evt := range h.events {
		batch = append(batch[:0], evt)
	drain:
		for len(batch) < h.cfg.MaxBatchEvents {
			select {
			case next, ok := <-h.events:
				if !ok {
					h.flush(batch)
					return
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		h.flush(batch)
	}
}

func (h *Hub) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	copyBatch := append([]Event(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, copyBatch); err != nil {
			h.logger.Warn("run event sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks(ctx context.Context) error {
	var firstErr error
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("run event sink close failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
