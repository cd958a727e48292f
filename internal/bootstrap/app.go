package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"media-player/internal/config"
	"media-player/internal/diagnostics"
	"media-player/internal/domain"
	"media-player/internal/player"
	"media-player/internal/subtitle"
	"media-player/internal/tasks"
	"media-player/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var subtitleDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Subtitle files",
		Pattern:     "*.srt;*.vtt;*.ass;*.ssa",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var modelDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Whisper models",
		Pattern:     "*.bin;*.gguf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, playback, transcription, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Player      *player.Controller
	Tasks       *tasks.Tracker
	Diagnostics domain.DiagnosticReport

	assets     fs.FS
	checker    *diagnostics.Checker
	events     *tasks.EventBus
	openEngine func(modelPath string) transcribe.OpenFunc

	mu          sync.Mutex
	runtimeCtx  context.Context
	loader      *transcribe.ModelLoader
	coordinator *transcribe.Coordinator
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets. The transcription model starts loading immediately so that
// the first media file does not wait on model initialization.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".media-player", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Player:      player.NewController(),
		Tasks:       tasks.NewTracker(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		events:      tasks.NewEventBus(1000),
		openEngine:  transcribe.OpenWhisper,
	}
	app.installTranscription(settings)
	return app, nil
}

// installTranscription builds a loader and coordinator for settings and starts
// the model load. An earlier loader, if any, is left to finish undisturbed;
// the earlier coordinator is retired so its in-flight tasks exit stale
// instead of delivering results past the swap.
func (a *App) installTranscription(settings domain.Settings) {
	loader := transcribe.NewModelLoader(a.openEngine(settings.ModelPath))
	coordinator := transcribe.NewCoordinator(loader, optionsFromSettings(settings), a.onTaskStatus)

	coordinator.AddListener(a.publishResult)
	coordinator.AddListener(a.attachSubtitles)
	loader.Load()

	a.mu.Lock()
	retired := a.coordinator
	a.loader = loader
	a.coordinator = coordinator
	a.mu.Unlock()

	if retired != nil {
		retired.Retire()
	}
}

// optionsFromSettings maps persisted settings to inference options.
func optionsFromSettings(settings domain.Settings) transcribe.Options {
	return transcribe.Options{
		WordTimestamps: settings.WordTimestamps,
		Language:       settings.Language,
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Media Player",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.Player.Release()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context and attaches the playback surface.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	a.Player.Attach(func(name string, payload any) {
		a.mu.Lock()
		rctx := a.runtimeCtx
		a.mu.Unlock()
		if rctx != nil {
			wailsruntime.EventsEmit(rctx, name, payload)
		}
	})
}

// LoadMedia loads a media file into the player and schedules transcription
// for it. An optional subtitle path is applied at load time.
func (a *App) LoadMedia(mediaPath, subtitlePath string) (domain.TranscriptionTask, error) {
	path := strings.TrimSpace(mediaPath)
	if path == "" {
		return domain.TranscriptionTask{}, fmt.Errorf("media path is required")
	}

	a.Player.LoadMedia(path, strings.TrimSpace(subtitlePath))

	taskID := a.currentCoordinator().TargetChanged(path)
	task, ok := a.Tasks.Get(taskID)
	if !ok {
		task = domain.TranscriptionTask{ID: taskID, Target: path, Status: domain.TaskStatusScheduled}
	}
	return task, nil
}

// Play resumes playback of the loaded media.
func (a *App) Play() {
	a.Player.Play()
}

// Pause pauses playback of the loaded media.
func (a *App) Pause() {
	a.Player.Pause()
}

// TogglePause flips the playback pause state.
func (a *App) TogglePause() {
	a.Player.TogglePause()
}

// Seek moves the playback position to the given millisecond offset.
func (a *App) Seek(timestampMS int64) {
	a.Player.Seek(timestampMS)
}

// SetSubtitles applies a subtitle file to the loaded media.
func (a *App) SetSubtitles(subtitlePath string) {
	a.Player.SetSubtitles(subtitlePath)
}

// ReleasePlayer stops playback and clears the loaded media.
func (a *App) ReleasePlayer() {
	a.Player.Release()
}

// CurrentTarget returns the media path most recently queued for transcription.
func (a *App) CurrentTarget() string {
	return a.currentCoordinator().CurrentTarget()
}

// CurrentTask returns the most recently scheduled transcription task.
func (a *App) CurrentTask() domain.TranscriptionTask {
	return a.Tasks.Latest()
}

// ForgetTask dismisses a finished task from tracking. Active tasks cannot be
// dismissed.
func (a *App) ForgetTask(taskID string) error {
	return a.Tasks.Forget(taskID)
}

// TranscriptEvents returns all events with sequence greater than sinceSeq.
func (a *App) TranscriptEvents(sinceSeq int64) []tasks.Event {
	return a.events.Since(sinceSeq)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	report := a.checker.Run(settings)
	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = report
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// Language and word-timestamp changes apply to tasks scheduled afterwards;
// a changed model path takes effect after ReloadModel.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	report := a.checker.Run(normalized)
	a.mu.Lock()
	a.Settings = normalized
	a.Diagnostics = report
	coordinator := a.coordinator
	a.mu.Unlock()

	if coordinator != nil {
		coordinator.SetOptions(optionsFromSettings(normalized))
	}

	return normalized, nil
}

// ReloadModel rebuilds the transcription engine from persisted settings.
// Model loads are one-shot per loader, so changing the model path requires
// this explicit reload.
func (a *App) ReloadModel() error {
	settings, err := a.Store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	a.installTranscription(settings)
	slog.Info("transcription model reload scheduled", "modelPath", settings.ModelPath)
	return nil
}

// PickMediaFile opens a native file dialog for media selection.
func (a *App) PickMediaFile() (string, error) {
	return a.pickFile("Select media file", mediaDialogFilter)
}

// PickSubtitleFile opens a native file dialog for subtitle selection.
func (a *App) PickSubtitleFile() (string, error) {
	return a.pickFile("Select subtitle file", subtitleDialogFilter)
}

// PickModelFile opens a native file dialog for whisper model selection.
func (a *App) PickModelFile() (string, error) {
	return a.pickFile("Select whisper model", modelDialogFilter)
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	return a.pickDirectory("Select model directory")
}

// PickOutputDirectory opens a native directory picker for transcript exports.
func (a *App) PickOutputDirectory() (string, error) {
	return a.pickDirectory("Select output directory")
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// onTaskStatus records task transitions and publishes them to subscribers.
func (a *App) onTaskStatus(taskID, target string, status domain.TaskStatus) {
	if status == domain.TaskStatusScheduled {
		if err := a.Tasks.Begin(taskID, target); err != nil {
			slog.Warn("begin task tracking", "task", taskID, "error", err)
		}
	} else if err := a.Tasks.Transition(taskID, status); err != nil {
		slog.Warn("task transition rejected", "task", taskID, "status", status, "error", err)
	}

	eventType := tasks.EventTypeStatus
	message := "Task " + string(status)
	if status == domain.TaskStatusFailed || status == domain.TaskStatusModelUnavailable {
		eventType = tasks.EventTypeError
	}

	a.publishEvent(tasks.Event{
		TaskID:  taskID,
		Target:  target,
		Type:    eventType,
		Status:  status,
		Message: message,
	})
}

// publishResult announces a delivered transcript to UI subscribers.
func (a *App) publishResult(result domain.TranscriptionResult) {
	a.publishEvent(tasks.Event{
		Target:  result.Target,
		Type:    tasks.EventTypeResult,
		Message: "Transcription completed",
		Text:    result.Text,
	})
}

// attachSubtitles exports the transcript as SubRip and loads it in the player.
func (a *App) attachSubtitles(result domain.TranscriptionResult) {
	a.mu.Lock()
	outputDir := a.Settings.OutputDir
	a.mu.Unlock()

	path, err := subtitle.Write(outputDir, result)
	if err != nil {
		slog.Error("export subtitles", "target", result.Target, "error", err)
		a.publishEvent(tasks.Event{
			Target:  result.Target,
			Type:    tasks.EventTypeError,
			Message: fmt.Sprintf("export subtitles: %v", err),
		})
		return
	}

	a.Player.SetSubtitles(path)
	a.publishEvent(tasks.Event{
		Target:       result.Target,
		Type:         tasks.EventTypeStatus,
		Message:      "Subtitles attached",
		SubtitlePath: path,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event tasks.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "task:event", published)
	}
}

// currentCoordinator returns the active coordinator under lock.
func (a *App) currentCoordinator() *transcribe.Coordinator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.coordinator
}

// refreshDiagnosticsFromSettings reruns checks after settings-changing calls.
func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) {
	report := a.checker.Run(settings)
	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = report
	a.mu.Unlock()
}

// pickFile opens a native open-file dialog with the given filters.
func (a *App) pickFile(title string, filters []wailsruntime.FileFilter) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   title,
		Filters: filters,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// pickDirectory opens a native directory picker.
func (a *App) pickDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies default language when empty.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Language = strings.TrimSpace(settings.Language)
	if settings.Language == "" {
		settings.Language = "auto"
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
