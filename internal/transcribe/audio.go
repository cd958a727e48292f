package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-audio/wav"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// audioConverter extracts a whisper-ready audio track from arbitrary media.
type audioConverter struct {
	ffmpegPath string
	runner     commandRunner
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
}

// newAudioConverter constructs the production converter with OS dependencies.
func newAudioConverter() *audioConverter {
	return &audioConverter{
		ffmpegPath: "ffmpeg",
		runner:     &execRunner{},
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
	}
}

// Prepare converts mediaPath into a 16 kHz mono s16le WAV file in a fresh
// temp directory. The returned cleanup func removes that directory.
func (c *audioConverter) Prepare(ctx context.Context, mediaPath string) (string, func(), error) {
	tempDir, err := c.mkdirTemp("", "media-player-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp workspace: %w", err)
	}
	cleanup := func() { _ = c.removeAll(tempDir) }

	outPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	args := buildFFmpegArgs(mediaPath, outPath)
	result, runErr := c.runner.Run(ctx, c.ffmpegPath, args...)
	if runErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("ffmpeg audio extraction failed (exit=%d): %w: %s",
			result.ExitCode, runErr, result.Stderr)
	}

	return outPath, cleanup, nil
}

// buildFFmpegArgs builds extraction CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// readSamples decodes a 16-bit PCM WAV file into normalized float32 samples.
func readSamples(wavPath string) ([]float32, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("open wav file: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", wavPath)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	const maxInt16 = 32768.0
	samples := make([]float32, len(buf.Data))
	for i, sample := range buf.Data {
		samples[i] = float32(sample) / maxInt16
	}

	return samples, nil
}
