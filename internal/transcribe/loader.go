package transcribe

import (
	"context"
	"log/slog"
	"sync"
)

// OpenFunc produces a ready-to-use inference engine. It is a long, blocking
// call (model weights are large) and runs on the loader's worker goroutine.
type OpenFunc func() (Engine, error)

// ModelLoader loads an inference engine exactly once on a dedicated worker
// goroutine and exposes a one-time readiness signal. A failed load leaves the
// engine nil permanently; waiters are still released so nothing deadlocks.
type ModelLoader struct {
	open  OpenFunc
	once  sync.Once
	ready chan struct{}

	// engine and err are written once by the worker before ready is
	// closed; the channel close orders them for all readers.
	engine Engine
	err    error
}

// NewModelLoader creates a loader; call Load to start the load attempt.
func NewModelLoader(open OpenFunc) *ModelLoader {
	return &ModelLoader{
		open:  open,
		ready: make(chan struct{}),
	}
}

// Load starts the load attempt on a worker goroutine. Subsequent calls are
// no-ops; there is no retry for a finished attempt.
func (l *ModelLoader) Load() {
	l.once.Do(func() {
		go l.run()
	})
}

// run performs the blocking load and flips the readiness signal in both the
// success and failure case.
func (l *ModelLoader) run() {
	defer close(l.ready)

	slog.Info("loading transcription model")
	engine, err := l.open()
	if err != nil {
		slog.Error("transcription model load failed", "error", err)
		l.err = err
		return
	}

	l.engine = engine
	slog.Info("transcription model loaded")
}

// AwaitReady blocks the calling goroutine until the load attempt finishes,
// regardless of outcome. It returns an error only when ctx is cancelled
// first; callers distinguish load success by checking Engine for nil.
func (l *ModelLoader) AwaitReady(ctx context.Context) error {
	select {
	case <-l.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Engine returns the loaded engine, or nil when the load failed or has not
// finished. Call after AwaitReady for a definitive answer.
func (l *ModelLoader) Engine() Engine {
	select {
	case <-l.ready:
		return l.engine
	default:
		return nil
	}
}

// Err returns the load failure, if any, once the readiness signal is set.
func (l *ModelLoader) Err() error {
	select {
	case <-l.ready:
		return l.err
	default:
		return nil
	}
}
