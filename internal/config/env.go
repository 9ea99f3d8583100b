package config

import (
	"os"
	"strconv"
	"strings"

	"n8n-launcher/internal/domain"
)

// Environment variables that take precedence over persisted settings.
const (
	EnvN8NPort    = "N8N_PORT"
	EnvComposeDir = "N8N_COMPOSE_DIR"
	EnvLogLevel   = "N8N_LAUNCHER_LOG_LEVEL"
)

// ApplyEnv overlays environment overrides onto settings using lookup.
func ApplyEnv(settings domain.Settings, lookup func(string) (string, bool)) domain.Settings {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if raw, ok := lookup(EnvN8NPort); ok {
		settings.N8NPort = ParsePort(raw)
	}
	if raw, ok := lookup(EnvComposeDir); ok && strings.TrimSpace(raw) != "" {
		settings.ComposeDir = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(raw) != "" {
		settings.LogLevel = strings.ToLower(strings.TrimSpace(raw))
	}
	return settings
}

// ParsePort converts raw text to a TCP port, falling back to the default.
func ParsePort(raw string) int {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !ValidPort(port) {
		return DefaultN8NPort
	}
	return port
}

// ValidPort reports whether port is a usable TCP port number.
func ValidPort(port int) bool {
	return port > 0 && port <= 65535
}

// Normalize trims user inputs and fills defaults for empty values.
func Normalize(settings domain.Settings) domain.Settings {
	settings.ComposeDir = strings.TrimSpace(settings.ComposeDir)
	settings.DockerPath = strings.TrimSpace(settings.DockerPath)
	settings.ComposePath = strings.TrimSpace(settings.ComposePath)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	if !ValidPort(settings.N8NPort) {
		settings.N8NPort = DefaultN8NPort
	}
	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}
	return settings
}
