package tasks

import (
	"errors"
	"fmt"
	"sync"

	"media-player/internal/domain"
)

// ErrUnknownTask is returned for transitions on untracked task IDs.
var ErrUnknownTask = errors.New("unknown task")

// ErrTaskExists is returned when beginning a duplicate task ID.
var ErrTaskExists = errors.New("task already tracked")

// Tracker records every scheduled transcription task and validates its
// status transitions. Superseded tasks stay tracked until terminal, so the
// UI can show in-flight work even after the current target moved on.
type Tracker struct {
	mu     sync.RWMutex
	tasks  map[string]domain.TranscriptionTask
	latest string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		tasks: make(map[string]domain.TranscriptionTask),
	}
}

// Begin registers a newly scheduled task for target.
func (t *Tracker) Begin(taskID, target string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tasks[taskID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, taskID)
	}

	t.tasks[taskID] = domain.TranscriptionTask{
		ID:     taskID,
		Target: target,
		Status: domain.TaskStatusScheduled,
	}
	t.latest = taskID
	return nil
}

// Transition validates and applies a status change for one task.
func (t *Tracker) Transition(taskID string, status domain.TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, exists := t.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if task.Status == status {
		return nil
	}
	if !isValidTransition(task.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", task.Status, status)
	}

	task.Status = status
	t.tasks[taskID] = task
	return nil
}

// Get returns a snapshot of one tracked task.
func (t *Tracker) Get(taskID string) (domain.TranscriptionTask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, exists := t.tasks[taskID]
	return task, exists
}

// Latest returns the most recently scheduled task, or a zero task.
func (t *Tracker) Latest() domain.TranscriptionTask {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tasks[t.latest]
}

// Forget drops a terminal task from tracking.
func (t *Tracker) Forget(taskID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, exists := t.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if !IsTerminal(task.Status) {
		return fmt.Errorf("cannot forget active task %s (%s)", taskID, task.Status)
	}

	delete(t.tasks, taskID)
	if t.latest == taskID {
		t.latest = ""
	}
	return nil
}

// IsTerminal reports whether a status ends a task's lifecycle.
func IsTerminal(status domain.TaskStatus) bool {
	switch status {
	case domain.TaskStatusDone, domain.TaskStatusStale,
		domain.TaskStatusFailed, domain.TaskStatusModelUnavailable:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed task state machine edges.
func isValidTransition(from, to domain.TaskStatus) bool {
	switch from {
	case domain.TaskStatusScheduled:
		return to == domain.TaskStatusAwaitingModel
	case domain.TaskStatusAwaitingModel:
		return to == domain.TaskStatusModelUnavailable ||
			to == domain.TaskStatusTranscribing ||
			to == domain.TaskStatusStale ||
			to == domain.TaskStatusFailed
	case domain.TaskStatusTranscribing:
		return to == domain.TaskStatusNotifying ||
			to == domain.TaskStatusStale ||
			to == domain.TaskStatusFailed
	case domain.TaskStatusNotifying:
		return to == domain.TaskStatusDone
	default:
		return false
	}
}
