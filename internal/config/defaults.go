package config

import (
	"os"
	"path/filepath"

	"media-player/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelPath:      filepath.Join(homeDir, ".media-player", "models"),
		OutputDir:      filepath.Join(homeDir, ".media-player", "transcripts"),
		Language:       "auto",
		WordTimestamps: true,
	}
}
