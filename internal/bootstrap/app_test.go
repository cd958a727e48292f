package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-player/internal/diagnostics"
	"media-player/internal/domain"
	"media-player/internal/player"
	"media-player/internal/tasks"
	"media-player/internal/transcribe"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save records settings for later loads.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// fakeEngine allows injecting custom transcription behavior per test.
type fakeEngine struct {
	transcribe func(ctx context.Context, mediaPath string, opts transcribe.Options) (*domain.TranscriptionResult, error)
}

// Transcribe delegates to injected function.
func (e *fakeEngine) Transcribe(ctx context.Context, mediaPath string, opts transcribe.Options) (*domain.TranscriptionResult, error) {
	if e.transcribe == nil {
		return &domain.TranscriptionResult{Target: mediaPath}, nil
	}
	return e.transcribe(ctx, mediaPath, opts)
}

// Close is a no-op for tests.
func (e *fakeEngine) Close() error {
	return nil
}

// commandRecorder captures playback commands pushed to the UI runtime.
type commandRecorder struct {
	mu       sync.Mutex
	commands []player.Command
}

func (r *commandRecorder) emit(name string, payload any) {
	cmd, ok := payload.(player.Command)
	if !ok {
		return
	}
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
}

func (r *commandRecorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd.Op)
	}
	return out
}

// newTestApp builds an App around a fake engine, bypassing the home-dir
// settings store and real whisper model load.
func newTestApp(t *testing.T, settings domain.Settings, engine *fakeEngine) *App {
	t.Helper()

	app := &App{
		Settings: settings,
		Store:    &fakeStore{settings: settings},
		Player:   player.NewController(),
		Tasks:    tasks.NewTracker(),
		checker:  diagnostics.NewChecker(),
		events:   tasks.NewEventBus(100),
		openEngine: func(string) transcribe.OpenFunc {
			return func() (transcribe.Engine, error) {
				return engine, nil
			}
		},
	}
	app.installTranscription(settings)
	return app
}

func TestLoadMediaSchedulesTranscriptionAndAttachesSubtitles(t *testing.T) {
	root := t.TempDir()
	mediaPath := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	outputDir := filepath.Join(root, "out")

	engine := &fakeEngine{transcribe: func(ctx context.Context, path string, opts transcribe.Options) (*domain.TranscriptionResult, error) {
		return &domain.TranscriptionResult{
			Target:   path,
			Text:     "hello world",
			Duration: 2 * time.Second,
			Segments: []domain.Segment{{Start: 0, End: 2 * time.Second, Text: "hello world"}},
		}, nil
	}}

	app := newTestApp(t, domain.Settings{OutputDir: outputDir, Language: "en"}, engine)
	recorder := &commandRecorder{}
	app.Player.Attach(recorder.emit)

	task, err := app.LoadMedia(mediaPath, "")
	if err != nil {
		t.Fatalf("load media: %v", err)
	}
	if task.Target != mediaPath {
		t.Fatalf("task target = %q, want %q", task.Target, mediaPath)
	}

	waitForTaskStatus(t, app, task.ID, domain.TaskStatusDone)

	subtitlePath := filepath.Join(outputDir, "clip.srt")
	if _, err := os.Stat(subtitlePath); err != nil {
		t.Fatalf("expected subtitle file at %s: %v", subtitlePath, err)
	}

	events := app.TranscriptEvents(0)
	assertEventTypeExists(t, events, tasks.EventTypeResult)
	assertEventTypeExists(t, events, tasks.EventTypeStatus)

	waitForOp(t, recorder, "set-subtitles")
	ops := recorder.ops()
	if ops[0] != "load" {
		t.Fatalf("first command = %q, want load", ops[0])
	}
}

func TestLoadMediaSupersedesEarlierTarget(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "a.mp4")
	second := filepath.Join(root, "b.mp4")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			t.Fatalf("write media file: %v", err)
		}
	}

	gate := make(chan struct{})
	engine := &fakeEngine{transcribe: func(ctx context.Context, path string, opts transcribe.Options) (*domain.TranscriptionResult, error) {
		if path == first {
			<-gate
		}
		return &domain.TranscriptionResult{Target: path, Text: "text for " + filepath.Base(path)}, nil
	}}

	app := newTestApp(t, domain.Settings{OutputDir: filepath.Join(root, "out"), Language: "en"}, engine)

	firstTask, err := app.LoadMedia(first, "")
	if err != nil {
		t.Fatalf("load first media: %v", err)
	}
	waitForTaskStatus(t, app, firstTask.ID, domain.TaskStatusTranscribing)

	secondTask, err := app.LoadMedia(second, "")
	if err != nil {
		t.Fatalf("load second media: %v", err)
	}
	close(gate)

	waitForTaskStatus(t, app, firstTask.ID, domain.TaskStatusStale)
	waitForTaskStatus(t, app, secondTask.ID, domain.TaskStatusDone)

	for _, event := range app.TranscriptEvents(0) {
		if event.Type == tasks.EventTypeResult && event.Target == first {
			t.Fatalf("superseded target %s must not publish a result", first)
		}
	}
}

func TestLoadMediaReportsModelUnavailable(t *testing.T) {
	root := t.TempDir()
	mediaPath := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}

	settings := domain.Settings{OutputDir: filepath.Join(root, "out"), Language: "en"}
	app := &App{
		Settings: settings,
		Store:    &fakeStore{settings: settings},
		Player:   player.NewController(),
		Tasks:    tasks.NewTracker(),
		checker:  diagnostics.NewChecker(),
		events:   tasks.NewEventBus(100),
		openEngine: func(string) transcribe.OpenFunc {
			return func() (transcribe.Engine, error) {
				return nil, errors.New("model file is corrupt")
			}
		},
	}
	app.installTranscription(settings)

	task, err := app.LoadMedia(mediaPath, "")
	if err != nil {
		t.Fatalf("load media: %v", err)
	}

	waitForTaskStatus(t, app, task.ID, domain.TaskStatusModelUnavailable)
	assertEventTypeExists(t, app.TranscriptEvents(0), tasks.EventTypeError)
}

func TestReloadModelReplacesFailedLoad(t *testing.T) {
	root := t.TempDir()
	mediaPath := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}

	settings := domain.Settings{OutputDir: filepath.Join(root, "out"), Language: "en"}
	var mu sync.Mutex
	failLoad := true
	app := &App{
		Settings: settings,
		Store:    &fakeStore{settings: settings},
		Player:   player.NewController(),
		Tasks:    tasks.NewTracker(),
		checker:  diagnostics.NewChecker(),
		events:   tasks.NewEventBus(100),
		openEngine: func(string) transcribe.OpenFunc {
			return func() (transcribe.Engine, error) {
				mu.Lock()
				defer mu.Unlock()
				if failLoad {
					return nil, errors.New("missing model")
				}
				return &fakeEngine{}, nil
			}
		},
	}
	app.installTranscription(settings)

	task, err := app.LoadMedia(mediaPath, "")
	if err != nil {
		t.Fatalf("load media: %v", err)
	}
	waitForTaskStatus(t, app, task.ID, domain.TaskStatusModelUnavailable)

	mu.Lock()
	failLoad = false
	mu.Unlock()
	if err := app.ReloadModel(); err != nil {
		t.Fatalf("reload model: %v", err)
	}

	retry, err := app.LoadMedia(mediaPath, "")
	if err != nil {
		t.Fatalf("load media after reload: %v", err)
	}
	waitForTaskStatus(t, app, retry.ID, domain.TaskStatusDone)
}

func TestSaveSettingsUpdatesTranscriptionOptions(t *testing.T) {
	root := t.TempDir()
	mediaPath := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}

	var mu sync.Mutex
	var got transcribe.Options
	engine := &fakeEngine{transcribe: func(ctx context.Context, path string, opts transcribe.Options) (*domain.TranscriptionResult, error) {
		mu.Lock()
		got = opts
		mu.Unlock()
		return &domain.TranscriptionResult{Target: path, Text: "text"}, nil
	}}

	app := newTestApp(t, domain.Settings{OutputDir: filepath.Join(root, "out"), Language: "en"}, engine)

	if _, err := app.SaveSettings(domain.Settings{
		OutputDir:      filepath.Join(root, "out"),
		Language:       "fr",
		WordTimestamps: true,
	}); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	task, err := app.LoadMedia(mediaPath, "")
	if err != nil {
		t.Fatalf("load media: %v", err)
	}
	waitForTaskStatus(t, app, task.ID, domain.TaskStatusDone)

	mu.Lock()
	defer mu.Unlock()
	if got.Language != "fr" || !got.WordTimestamps {
		t.Fatalf("inference options = %+v, want saved language fr with timestamps", got)
	}
}

func TestReloadModelRetiresInFlightTasks(t *testing.T) {
	root := t.TempDir()
	mediaPath := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}

	gate := make(chan struct{})
	engine := &fakeEngine{transcribe: func(ctx context.Context, path string, opts transcribe.Options) (*domain.TranscriptionResult, error) {
		<-gate
		return &domain.TranscriptionResult{Target: path, Text: "late"}, nil
	}}

	app := newTestApp(t, domain.Settings{OutputDir: filepath.Join(root, "out"), Language: "en"}, engine)

	task, err := app.LoadMedia(mediaPath, "")
	if err != nil {
		t.Fatalf("load media: %v", err)
	}
	waitForTaskStatus(t, app, task.ID, domain.TaskStatusTranscribing)

	if err := app.ReloadModel(); err != nil {
		t.Fatalf("reload model: %v", err)
	}
	close(gate)

	waitForTaskStatus(t, app, task.ID, domain.TaskStatusStale)
	for _, event := range app.TranscriptEvents(0) {
		if event.Type == tasks.EventTypeResult {
			t.Fatalf("retired coordinator published a result: %+v", event)
		}
	}
}

func TestForgetTaskDismissesFinishedTask(t *testing.T) {
	root := t.TempDir()
	mediaPath := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}

	app := newTestApp(t, domain.Settings{OutputDir: filepath.Join(root, "out"), Language: "en"}, &fakeEngine{})

	task, err := app.LoadMedia(mediaPath, "")
	if err != nil {
		t.Fatalf("load media: %v", err)
	}
	waitForTaskStatus(t, app, task.ID, domain.TaskStatusDone)

	if err := app.ForgetTask(task.ID); err != nil {
		t.Fatalf("forget finished task: %v", err)
	}
	if _, ok := app.Tasks.Get(task.ID); ok {
		t.Fatal("forgotten task still tracked")
	}
	if err := app.ForgetTask(task.ID); !errors.Is(err, tasks.ErrUnknownTask) {
		t.Fatalf("second forget error = %v, want ErrUnknownTask", err)
	}
}

func TestSaveSettingsNormalizesAndPersists(t *testing.T) {
	root := t.TempDir()
	settings := domain.Settings{OutputDir: root, Language: "en"}
	app := newTestApp(t, settings, &fakeEngine{})

	saved, err := app.SaveSettings(domain.Settings{
		ModelPath: "  /models/ggml-base.bin  ",
		OutputDir: " " + root + " ",
		Language:  "",
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}

	if saved.ModelPath != "/models/ggml-base.bin" {
		t.Fatalf("model path = %q, want trimmed", saved.ModelPath)
	}
	if saved.Language != "auto" {
		t.Fatalf("language = %q, want auto", saved.Language)
	}

	loaded, err := app.GetSettings()
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if loaded != saved {
		t.Fatalf("persisted settings = %+v, want %+v", loaded, saved)
	}
}

// waitForTaskStatus polls until a task reaches desired status or times out.
func waitForTaskStatus(t *testing.T, app *App, taskID string, want domain.TaskStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if task, ok := app.Tasks.Get(taskID); ok && task.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	task, _ := app.Tasks.Get(taskID)
	t.Fatalf("task %s status = %s, want %s", taskID, task.Status, want)
}

// waitForOp polls until recorder observed the given playback op.
func waitForOp(t *testing.T, recorder *commandRecorder, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, op := range recorder.ops() {
			if op == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("playback op %q not observed, got %v", want, recorder.ops())
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []tasks.Event, want tasks.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
