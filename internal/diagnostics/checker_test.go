package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"media-player/internal/domain"
)

func TestRunReportsFailureWhenToolMissing(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	checker := NewCheckerForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		ModelPath: modelPath,
		OutputDir: filepath.Join(dir, "out"),
	})

	if !report.HasFailures {
		t.Fatalf("expected failures when ffmpeg is missing")
	}

	item := findItem(t, report, "tool_ffmpeg")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("tool status = %q, want fail", item.Status)
	}
}

func TestRunPassesWithValidEnvironment(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir model dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modelDir, "ggml-small.gguf"), []byte("model"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		ModelPath: modelDir,
		OutputDir: filepath.Join(dir, "out"),
	})

	if report.HasFailures {
		t.Fatalf("expected clean report, got failures: %+v", report.Items)
	}
	if len(report.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(report.Items))
	}
}

func TestCheckModelPathFailures(t *testing.T) {
	dir := t.TempDir()
	emptyDir := filepath.Join(dir, "empty")
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cases := []struct {
		name      string
		modelPath string
	}{
		{name: "empty path", modelPath: "   "},
		{name: "missing path", modelPath: filepath.Join(dir, "missing.bin")},
		{name: "directory without models", modelPath: emptyDir},
	}

	checker := NewChecker()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := checker.checkModelPath(tc.modelPath)
			if item.Status != domain.DiagnosticStatusFail {
				t.Fatalf("status = %q, want fail", item.Status)
			}
			if item.Hint == "" {
				t.Fatalf("expected hint for failing model path check")
			}
		})
	}
}

func TestCheckOutputDirRejectsUnwritableLocation(t *testing.T) {
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		os.Stat,
		os.ReadDir,
		func(string, os.FileMode) error { return errors.New("read-only filesystem") },
		os.CreateTemp,
		os.Remove,
	)

	item := checker.checkOutputDir("/proc/nope")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %q, want fail", item.Status)
	}
}

func findItem(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("diagnostic item %q not found", id)
	return domain.DiagnosticItem{}
}
