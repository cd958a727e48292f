// Package player drives the frontend playback surface. Commands are forwarded
// as runtime events; each one validates its preconditions (surface attached,
// media loaded, paths exist) and logs and no-ops on failure rather than
// returning errors, since playback commands originate from UI gestures.
package player

import (
	"log/slog"
	"os"
	"sync"
)

// EventCommand is the runtime event name carrying playback commands.
const EventCommand = "player:command"

// Command is one playback instruction for the frontend surface.
type Command struct {
	Op           string `json:"op"`
	Path         string `json:"path,omitempty"`
	SubtitlePath string `json:"subtitlePath,omitempty"`
	TimestampMS  int64  `json:"timestampMs,omitempty"`
	Paused       bool   `json:"paused,omitempty"`
}

// Emit pushes one named event with a payload to the UI runtime.
type Emit func(name string, payload any)

// Controller tracks playback surface state and issues commands to it.
type Controller struct {
	mu         sync.Mutex
	emit       Emit
	stat       func(string) (os.FileInfo, error)
	loadedPath string
	paused     bool
}

// NewController creates a detached controller; commands no-op until Attach.
func NewController() *Controller {
	return &Controller{stat: os.Stat}
}

// Attach connects the controller to a live UI runtime.
func (c *Controller) Attach(emit Emit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit = emit
}

// LoadMedia loads a media file, optionally with a subtitle file. The surface
// starts paused; playback begins with an explicit Play.
func (c *Controller) LoadMedia(mediaPath, subtitlePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.readyLocked("load media") {
		return
	}
	if !c.pathExists(mediaPath) {
		slog.Warn("invalid media path", "path", mediaPath)
		return
	}
	if subtitlePath != "" && !c.pathExists(subtitlePath) {
		slog.Warn("invalid subtitle path, loading without subtitles", "path", subtitlePath)
		subtitlePath = ""
	}

	c.loadedPath = mediaPath
	c.paused = true
	c.emit(EventCommand, Command{Op: "load", Path: mediaPath, SubtitlePath: subtitlePath})
	slog.Info("media loaded", "path", mediaPath, "subtitles", subtitlePath)
}

// Play resumes playback of the loaded media.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loadedLocked("play") {
		return
	}

	c.paused = false
	c.emit(EventCommand, Command{Op: "play"})
}

// Pause pauses playback of the loaded media.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loadedLocked("pause") {
		return
	}

	c.paused = true
	c.emit(EventCommand, Command{Op: "pause"})
}

// TogglePause flips the pause state.
func (c *Controller) TogglePause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loadedLocked("toggle pause") {
		return
	}

	c.paused = !c.paused
	c.emit(EventCommand, Command{Op: "toggle-pause", Paused: c.paused})
	slog.Info("playback state toggled", "paused", c.paused)
}

// Seek moves the playback position to the given timestamp in milliseconds.
func (c *Controller) Seek(timestampMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loadedLocked("seek") {
		return
	}
	if timestampMS < 0 {
		slog.Warn("ignoring negative seek timestamp", "timestampMs", timestampMS)
		return
	}

	c.emit(EventCommand, Command{Op: "seek", TimestampMS: timestampMS})
}

// SetSubtitles applies a subtitle file to the loaded media.
func (c *Controller) SetSubtitles(subtitlePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loadedLocked("set subtitles") {
		return
	}
	if !c.pathExists(subtitlePath) {
		slog.Warn("invalid subtitle path", "path", subtitlePath)
		return
	}

	c.emit(EventCommand, Command{Op: "set-subtitles", SubtitlePath: subtitlePath})
	slog.Info("subtitles applied", "path", subtitlePath)
}

// Release tells the surface to drop its media resources and detaches the
// controller. Safe to call repeatedly.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.emit != nil {
		c.emit(EventCommand, Command{Op: "release"})
	}
	c.emit = nil
	c.loadedPath = ""
	c.paused = false
}

// LoadedPath returns the currently loaded media path, if any.
func (c *Controller) LoadedPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedPath
}

// Paused reports the tracked pause state.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// readyLocked checks surface attachment; callers hold the mutex.
func (c *Controller) readyLocked(op string) bool {
	if c.emit == nil {
		slog.Warn("playback surface is not attached", "op", op)
		return false
	}
	return true
}

// loadedLocked checks attachment plus loaded media; callers hold the mutex.
func (c *Controller) loadedLocked(op string) bool {
	if !c.readyLocked(op) {
		return false
	}
	if c.loadedPath == "" {
		slog.Warn("no media loaded", "op", op)
		return false
	}
	return true
}

// pathExists reports whether a file path is non-empty and present on disk.
func (c *Controller) pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := c.stat(path)
	return err == nil
}
