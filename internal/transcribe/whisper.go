package transcribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"media-player/internal/domain"
)

// whisperEngine runs whisper.cpp inference through the cgo bindings.
type whisperEngine struct {
	model     whisper.Model
	converter *audioConverter
}

// OpenWhisper returns an open function for the model loader that resolves
// modelPath (a model file or a directory of models) and loads it with
// whisper.cpp.
func OpenWhisper(modelPath string) OpenFunc {
	return func() (Engine, error) {
		resolved, err := resolveModelFile(modelPath)
		if err != nil {
			return nil, err
		}

		model, err := whisper.New(resolved)
		if err != nil {
			return nil, fmt.Errorf("load whisper model %q: %w", resolved, err)
		}

		return &whisperEngine{
			model:     model,
			converter: newAudioConverter(),
		}, nil
	}
}

// Transcribe extracts audio from mediaPath and runs whisper inference on it.
func (e *whisperEngine) Transcribe(ctx context.Context, mediaPath string, opts Options) (*domain.TranscriptionResult, error) {
	if _, err := os.Stat(mediaPath); err != nil {
		return nil, fmt.Errorf("access media file: %w", err)
	}

	wavPath, cleanup, err := e.converter.Prepare(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	samples, err := readSamples(wavPath)
	if err != nil {
		return nil, err
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}

	if lang := normalizeLanguage(opts.Language); lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return nil, fmt.Errorf("set language %q: %w", lang, err)
		}
	}
	wctx.SetTokenTimestamps(opts.WordTimestamps)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper inference: %w", err)
	}

	result := &domain.TranscriptionResult{
		Target:   mediaPath,
		Language: wctx.Language(),
	}

	var textParts []string
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read segment: %w", err)
		}

		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}

		result.Segments = append(result.Segments, domain.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  text,
		})
		textParts = append(textParts, text)

		if opts.WordTimestamps {
			result.Words = append(result.Words, wordsFromTokens(segment.Tokens)...)
		}
	}

	result.Text = strings.Join(textParts, " ")
	if n := len(result.Segments); n > 0 {
		result.Duration = result.Segments[n-1].End
	}

	return result, nil
}

// Close releases the whisper model resources.
func (e *whisperEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// wordsFromTokens converts token timings to word entries, skipping special
// tokens such as "[_BEG_]".
func wordsFromTokens(tokens []whisper.Token) []domain.Word {
	words := make([]domain.Word, 0, len(tokens))
	for _, token := range tokens {
		text := strings.TrimSpace(token.Text)
		if text == "" || strings.HasPrefix(text, "[_") {
			continue
		}

		words = append(words, domain.Word{
			Word:  text,
			Start: token.Start,
			End:   token.End,
		})
	}
	return words
}

// resolveModelFile returns a model file path from file or directory input.
func resolveModelFile(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := os.Stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path %q: %w", modelPath, err)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := os.ReadDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory %q: %w", modelPath, err)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}
