// Package transcribe coordinates asynchronous speech transcription for the
// media player: it loads a whisper model off the caller's goroutine,
// serializes inference against the currently selected media target, discards
// superseded results, and fans successful transcripts out to listeners.
package transcribe

import (
	"context"
	"strings"

	"media-player/internal/domain"
)

// Options carries caller-supplied inference settings for one run.
type Options struct {
	// WordTimestamps requests word-level timing entries in the result.
	WordTimestamps bool
	// Language is an optional hint ("auto" or empty means no override).
	Language string
}

// Engine runs blocking speech inference against a media file.
type Engine interface {
	// Transcribe converts the audio track of mediaPath to text. It is a
	// long, blocking call; callers run it off the UI dispatch path.
	Transcribe(ctx context.Context, mediaPath string, opts Options) (*domain.TranscriptionResult, error)
	// Close releases engine resources.
	Close() error
}

// normalizeLanguage maps "auto" and empty language hints to no override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
