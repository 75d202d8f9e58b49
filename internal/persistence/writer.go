package persistence

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
}

// WriterQueue serializes database writes onto a single goroutine.
// Controller sweeps can produce hundreds of messages per second, so a
// full queue drops the write instead of blocking the capture path or
// spawning a goroutine per overflow.
type WriterQueue struct {
	logger  *slog.Logger
	queue   chan writeCmd
	dropped atomic.Uint64
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &WriterQueue{
		logger: logger,
		queue:  make(chan writeCmd, capacity),
	}
}

func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	cmd := writeCmd{name: name, fn: fn}
	select {
	case w.queue <- cmd:
	default:
		dropped := w.dropped.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			w.logger.Warn("db write queue full, dropping", "cmd", cmd.name, "dropped_total", dropped)
		}
	}
}

// Dropped reports how many writes were discarded because the queue was
// full.
func (w *WriterQueue) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				w.runWithRetry(ctx, cmd)
			}
		}
	}()
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := cmd.fn(ctx); err != nil {
			w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
			if attempt == maxAttempts {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		return
	}
}
