package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"n8n-launcher/internal/domain"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(parseLevel("warn"), "text", &buf)

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info enabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn disabled at warn level")
	}

	if newLogger(parseLevel("bogus"), "text", &buf).Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("unknown level should default to info")
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(parseLevel("debug"), "json", &buf).Debug("resolve", "tool", "docker")

	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"tool":"docker"`) {
		t.Fatalf("output = %q, want json record", out)
	}
}

func TestConfigureAppliesLogLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	app := &App{logLevel: level, logger: newLogger(level, "text", &buf)}

	app.configure(domain.Settings{N8NPort: 5678, LogLevel: "debug"})
	if !app.log().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug disabled after switching settings to debug")
	}

	app.configure(domain.Settings{N8NPort: 5678, LogLevel: "error"})
	if app.log().Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn enabled after switching settings to error")
	}
}
