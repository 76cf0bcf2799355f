package compaction

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/tracewal/infrastructure/logging"
)

// Worker invokes the compactor on an interval until stopped.
//
// Per-pass failures are logged, not propagated: a transient problem
// with one segment must not halt all future compaction.
type Worker struct {
	compactor *Compactor
	interval  time.Duration

	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewWorker creates a background worker over the given compactor.
func NewWorker(compactor *Compactor, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	return &Worker{
		compactor: compactor,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the compaction loop on its own goroutine. Calling
// Start more than once is a no-op.
func (w *Worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			if err := w.compactor.CompactOnce(ctx); err != nil {
				logging.Warn().
					Add(logging.Component("compaction-worker")).
					Add(logging.ErrorField(err)).
					Msg("compaction pass failed")
			}
			cancel()
		}
	}
}

// StopAndJoin signals the loop to stop and blocks until it exits.
// It completes within one compaction-pass duration and is safe to call
// more than once, or on a worker that was never started.
func (w *Worker) StopAndJoin() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if !w.started.Load() {
		return
	}
	<-w.done
}
