package config

import (
	"os"
	"path/filepath"

	"n8n-launcher/internal/domain"
)

const (
	// DefaultN8NPort is the port n8n listens on inside the default manifest.
	DefaultN8NPort = 5678

	// DefaultLogLevel is used when neither settings nor env choose one.
	DefaultLogLevel = "info"

	appDirName = ".n8n-launcher"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		N8NPort:  DefaultN8NPort,
		LogLevel: DefaultLogLevel,
	}
}

// AppDataDir returns the per-user directory holding settings and the
// fallback compose manifest.
func AppDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName)
}

// SettingsPath returns the default settings file location.
func SettingsPath() string {
	return filepath.Join(AppDataDir(), "settings.json")
}
