package domain

// TaskStatus tracks lifecycle stages of one transcription task.
type TaskStatus string

const (
	TaskStatusScheduled        TaskStatus = "scheduled"
	TaskStatusAwaitingModel    TaskStatus = "awaiting-model"
	TaskStatusModelUnavailable TaskStatus = "model-unavailable"
	TaskStatusTranscribing     TaskStatus = "transcribing"
	TaskStatusNotifying        TaskStatus = "notifying"
	TaskStatusDone             TaskStatus = "done"
	TaskStatusStale            TaskStatus = "stale"
	TaskStatusFailed           TaskStatus = "failed"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelPath      string `json:"modelPath"`
	OutputDir      string `json:"outputDir"`
	Language       string `json:"language"`
	WordTimestamps bool   `json:"wordTimestamps"`
}

// TranscriptionTask stores one scheduled task's identity, target, and status.
type TranscriptionTask struct {
	ID     string     `json:"id"`
	Target string     `json:"target"`
	Status TaskStatus `json:"status"`
}
