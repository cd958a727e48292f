package domain

import "time"

// Segment is one timestamped portion of a transcript.
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Word is one word-level timing entry, populated only when requested.
type Word struct {
	Word  string        `json:"word"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// TranscriptionResult is the payload delivered to transcription listeners.
// It exists only for the duration of listener notification; nothing in the
// coordinator retains it.
type TranscriptionResult struct {
	Target   string        `json:"target"`
	Text     string        `json:"text"`
	Language string        `json:"language,omitempty"`
	Duration time.Duration `json:"duration"`
	Segments []Segment     `json:"segments,omitempty"`
	Words    []Word        `json:"words,omitempty"`
}
