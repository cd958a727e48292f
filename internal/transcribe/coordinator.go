package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"media-player/internal/domain"
)

// ErrModelUnavailable is returned by Transcribe after a failed model load.
var ErrModelUnavailable = errors.New("transcription model is not available")

// TranscriptionError wraps an inference failure with its target.
type TranscriptionError struct {
	Target string
	Err    error
}

// Error formats the failure for logs and task callers.
func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed for %s: %v", e.Target, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// Listener receives every successfully delivered transcription result.
type Listener func(domain.TranscriptionResult)

// TaskCallback observes task status transitions, for UI tracking.
type TaskCallback func(taskID, target string, status domain.TaskStatus)

// Coordinator serializes transcription work against a moving target. It owns
// the current target pointer, runs at most one inference at a time, drops
// results whose target was superseded mid-flight, and notifies listeners in
// registration order.
type Coordinator struct {
	loader *ModelLoader
	onTask TaskCallback

	// target is replaced atomically outside the inference lock and read
	// inside it for the staleness checks.
	target atomic.Pointer[string]

	// inference admits one running transcription across all tasks.
	inference sync.Mutex

	mu        sync.Mutex
	opts      Options
	listeners []Listener
}

// NewCoordinator creates a coordinator using opts as the defaults for tasks
// scheduled through TargetChanged. onTask may be nil.
func NewCoordinator(loader *ModelLoader, opts Options, onTask TaskCallback) *Coordinator {
	return &Coordinator{
		loader: loader,
		opts:   opts,
		onTask: onTask,
	}
}

// SetOptions replaces the defaults used by tasks scheduled through
// TargetChanged. Tasks already scheduled keep the options they started with.
func (c *Coordinator) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// currentOptions snapshots the defaults for a newly scheduled task.
func (c *Coordinator) currentOptions() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Retire clears the current target so in-flight tasks fail their staleness
// checks and exit without delivering results. Used when the coordinator is
// replaced by a fresh one.
func (c *Coordinator) Retire() {
	empty := ""
	c.target.Store(&empty)
}

// CurrentTarget returns the most recently announced target.
func (c *Coordinator) CurrentTarget() string {
	p := c.target.Load()
	if p == nil {
		return ""
	}
	return *p
}

// TargetChanged records target as current and schedules a transcription task
// for it. In-flight tasks for earlier targets are not cancelled; they observe
// the staleness checks and exit without side effects. Returns the task ID.
func (c *Coordinator) TargetChanged(target string) string {
	c.target.Store(&target)

	taskID := uuid.NewString()
	opts := c.currentOptions()
	c.emitTask(taskID, target, domain.TaskStatusScheduled)

	go func() {
		err := c.run(context.Background(), taskID, target, opts)
		if err != nil {
			slog.Error("transcription task failed",
				"task", taskID, "target", target, "error", err)
		}
	}()

	return taskID
}

// Transcribe runs one transcription task for target with caller-supplied
// options. A stale exit is a normal nil return, not an error.
func (c *Coordinator) Transcribe(ctx context.Context, target string, opts Options) error {
	taskID := uuid.NewString()
	c.emitTask(taskID, target, domain.TaskStatusScheduled)
	return c.run(ctx, taskID, target, opts)
}

// run is the task body. Order is fixed: await model, check availability,
// acquire the inference section, staleness check, inference, staleness check,
// notify. The inference section is released on every exit path.
func (c *Coordinator) run(ctx context.Context, taskID, target string, opts Options) error {
	c.emitTask(taskID, target, domain.TaskStatusAwaitingModel)
	if err := c.loader.AwaitReady(ctx); err != nil {
		c.emitTask(taskID, target, domain.TaskStatusFailed)
		return err
	}

	engine := c.loader.Engine()
	if engine == nil {
		c.emitTask(taskID, target, domain.TaskStatusModelUnavailable)
		return ErrModelUnavailable
	}

	c.inference.Lock()
	defer c.inference.Unlock()

	if c.CurrentTarget() != target {
		slog.Debug("target superseded before inference", "task", taskID, "target", target)
		c.emitTask(taskID, target, domain.TaskStatusStale)
		return nil
	}

	c.emitTask(taskID, target, domain.TaskStatusTranscribing)
	result, err := engine.Transcribe(ctx, target, opts)
	if err != nil {
		terr := &TranscriptionError{Target: target, Err: err}
		slog.Error("inference failed", "task", taskID, "target", target, "error", err)
		c.emitTask(taskID, target, domain.TaskStatusFailed)
		return terr
	}

	if c.CurrentTarget() != target {
		slog.Debug("target superseded after inference, result discarded",
			"task", taskID, "target", target)
		c.emitTask(taskID, target, domain.TaskStatusStale)
		return nil
	}

	c.emitTask(taskID, target, domain.TaskStatusNotifying)
	c.notifyListeners(*result)
	c.emitTask(taskID, target, domain.TaskStatusDone)
	return nil
}

// AddListener appends a callback to the registry. There is no deduplication
// and no removal; entries live for the coordinator's lifetime.
func (c *Coordinator) AddListener(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// notifyListeners invokes every registered callback with result, in
// registration order. Each invocation is isolated so one listener's panic
// cannot prevent later listeners from being notified.
func (c *Coordinator) notifyListeners(result domain.TranscriptionResult) {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for i, fn := range listeners {
		invokeListener(i, fn, result)
	}
}

// invokeListener runs one callback and converts a panic into a log entry.
func invokeListener(index int, fn Listener, result domain.TranscriptionResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("transcription listener panicked",
				"listener", index, "target", result.Target, "panic", r)
		}
	}()

	fn(result)
}

// emitTask forwards task transitions when a callback is configured.
func (c *Coordinator) emitTask(taskID, target string, status domain.TaskStatus) {
	if c.onTask != nil {
		c.onTask(taskID, target, status)
	}
}
