// Package subtitle renders transcription results as SubRip (.srt) files so
// transcripts can be fed straight back into the playback surface.
package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-player/internal/domain"
)

// Render formats the result's segments as SubRip cue text. A result without
// segments becomes a single cue spanning the full duration.
func Render(result domain.TranscriptionResult) string {
	var b strings.Builder

	segments := result.Segments
	if len(segments) == 0 {
		text := strings.TrimSpace(result.Text)
		if text == "" {
			return ""
		}
		segments = []domain.Segment{{Start: 0, End: result.Duration, Text: text}}
	}

	for i, segment := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			timestamp(segment.Start),
			timestamp(segment.End),
			strings.TrimSpace(segment.Text),
		)
	}

	return b.String()
}

// Write renders result into dir, named after the source media file. It
// returns the written subtitle path.
func Write(dir string, result domain.TranscriptionResult) (string, error) {
	content := Render(result)
	if content == "" {
		return "", fmt.Errorf("transcription result has no text to render")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create subtitle directory: %w", err)
	}

	path := filepath.Join(dir, subtitleFileName(result.Target))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write subtitle file: %w", err)
	}

	return path, nil
}

// timestamp formats a duration as a SubRip timestamp (HH:MM:SS,mmm).
func timestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// subtitleFileName builds the output file name from the media target path.
func subtitleFileName(target string) string {
	base := filepath.Base(target)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "transcript"
	}
	return name + ".srt"
}
