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
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"n8n-launcher/internal/command"
	"n8n-launcher/internal/compose"
	"n8n-launcher/internal/config"
	"n8n-launcher/internal/diagnostics"
	"n8n-launcher/internal/domain"
	"n8n-launcher/internal/engine"
	"n8n-launcher/internal/health"
	"n8n-launcher/internal/jobs"
	"n8n-launcher/internal/stack"
	"n8n-launcher/internal/toolpath"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Wails event names.
const (
	EventDockerProgress = "docker-progress"
	EventOperation      = "operation:event"
)

// statusTimeout bounds one status binding call.
const statusTimeout = 30 * time.Second

// App wires configuration, docker components, operations, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Ops         *jobs.Manager
	Stack       stackService
	Compose     composeRunner
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     diagnosticsRunner
	paths       pathReporter
	logger      *slog.Logger
	logLevel    *slog.LevelVar
	lookupEnv   func(string) (string, bool)
	installer   *installer
	dataDir     string

	// watchDebounce overrides the file watcher debounce when non-zero.
	watchDebounce time.Duration
	stopWatch     func()
	watched       []string

	// progressInterval overrides the progress ticker period when non-zero.
	progressInterval time.Duration
	emit             func(ctx context.Context, name string, data ...interface{})
	openURL          func(ctx context.Context, url string)

	mu         sync.Mutex
	activeOpID string
	cancel     context.CancelFunc
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// stackService is the status side of the stack.
type stackService interface {
	DockerStatus(ctx context.Context) domain.DockerStatus
	N8NStatus(ctx context.Context) domain.N8NStatus
	WaitForN8N(ctx context.Context, want bool, timeout, interval time.Duration) (domain.N8NStatus, error)
	BaseURL() string
}

// composeRunner runs the compose lifecycle commands.
type composeRunner interface {
	Up(ctx context.Context) (command.Log, error)
	Down(ctx context.Context) (command.Log, error)
	Logs(ctx context.Context) (string, error)
	Images(ctx context.Context) (string, error)
	Locate() (compose.Location, error)
}

type diagnosticsRunner interface {
	Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport
}

type pathReporter interface {
	Report(ctx context.Context) domain.PathReport
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	if err := ensureToolDirsOnPATH(goruntime.GOOS); err != nil {
		return nil, fmt.Errorf("prepare tool path: %w", err)
	}

	store := config.NewJSONStore(config.SettingsPath())
	stored, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings := config.Normalize(config.ApplyEnv(stored, os.LookupEnv))

	level := new(slog.LevelVar)
	level.Set(parseLevel(settings.LogLevel))
	app := &App{
		Store:     store,
		Ops:       jobs.NewManager(),
		assets:    assets,
		logger:    newLogger(level, "text", os.Stderr),
		logLevel:  level,
		lookupEnv: os.LookupEnv,
		emit:      wailsruntime.EventsEmit,
		openURL:   wailsruntime.BrowserOpenURL,
		events:    jobs.NewEventBus(1000),
	}
	app.configure(settings)
	app.logger.Info("launcher configured",
		"settings", store.Path(), "port", settings.N8NPort, "composeDir", settings.ComposeDir)

	ctx, cancel := context.WithTimeout(context.Background(), diagnostics.RunTimeout)
	defer cancel()
	app.Diagnostics = app.checker.Run(ctx, settings)

	return app, nil
}

// configure rebuilds every settings-dependent component.
func (a *App) configure(settings domain.Settings) {
	if a.logLevel != nil {
		a.logLevel.Set(parseLevel(settings.LogLevel))
	}
	runner := command.NewExecRunner()
	resolver := toolpath.NewResolver(runner, toolpath.Options{
		DockerPath:  settings.DockerPath,
		ComposePath: settings.ComposePath,
		Logger:      a.logger,
	})
	locator := compose.NewLocator(settings.ComposeDir, config.AppDataDir())
	stackSvc := stack.NewService(runner, resolver, locator, health.NewProber(health.DefaultTimeout), stack.Config{
		Port:      settings.N8NPort,
		LookupEnv: a.lookupEnv,
		Logger:    a.logger,
	})
	dockerEngine := engine.NewProber()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	a.Stack = stackSvc
	a.Compose = compose.NewClient(runner, resolver, locator, a.logger)
	a.checker = diagnostics.NewChecker(resolver, stackSvc, dockerEngine, locator).WithLookup(a.lookupEnv)
	a.paths = &pathInspector{
		tools:   resolver,
		locator: locator,
		engine:  dockerEngine,
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
		Title:       "n8n Launcher",
		Width:       960,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.stopWatcher()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events and starts watching
// the settings file and compose manifest.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	a.restartWatcher()
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings with env overrides.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.Settings{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, rewires components, then
// refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.applySettings(a.withEnv(normalized))
	a.restartWatcher()
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	a.applySettings(settings)
	return a.GetDiagnostics(), nil
}

// CurrentOperation returns the active or last start/stop operation.
func (a *App) CurrentOperation() domain.Operation {
	return a.Ops.Current()
}

// OperationEvents returns all events with sequence greater than sinceSeq.
func (a *App) OperationEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// OpenComposeFolder opens the directory holding the active compose manifest.
func (a *App) OpenComposeFolder() error {
	deps := a.deps()
	if deps.compose == nil {
		return fmt.Errorf("compose client is not configured")
	}
	loc, err := deps.compose.Locate()
	if err != nil {
		return fmt.Errorf("locate compose file: %w", err)
	}
	return openInFileManager(loc.Dir)
}

func (a *App) loadSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return a.withEnv(settings), nil
}

// withEnv overlays environment overrides and normalizes the result.
func (a *App) withEnv(settings domain.Settings) domain.Settings {
	lookup := a.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return config.Normalize(config.ApplyEnv(settings, lookup))
}

// applySettings rebuilds components created by configure and reruns
// diagnostics against the new settings. Running operations keep the
// components they started with.
func (a *App) applySettings(settings domain.Settings) {
	if a.rewire() {
		a.configure(settings)
	} else {
		a.mu.Lock()
		a.Settings = settings
		a.mu.Unlock()
	}

	deps := a.deps()
	if deps.checker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), diagnostics.RunTimeout)
	defer cancel()
	report := deps.checker.Run(ctx, settings)

	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
}

// rewire reports whether components were built by configure and may be
// rebuilt from settings.
func (a *App) rewire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.checker.(*diagnostics.Checker)
	return ok
}

type appDeps struct {
	stack   stackService
	compose composeRunner
	checker diagnosticsRunner
	paths   pathReporter
}

func (a *App) deps() appDeps {
	a.mu.Lock()
	defer a.mu.Unlock()
	return appDeps{
		stack:   a.Stack,
		compose: a.Compose,
		checker: a.checker,
		paths:   a.paths,
	}
}

func (a *App) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(opID string, status domain.OperationStatus, message string) {
	a.publishEvent(jobs.Event{
		OperationID: opID,
		Type:        jobs.EventTypeStatus,
		Status:      status,
		Message:     message,
	})
}

// publishLog records one finished command.
func (a *App) publishLog(opID, message string, log command.Log) {
	a.publishEvent(jobs.Event{
		OperationID: opID,
		Type:        jobs.EventTypeLog,
		Message:     message,
		Command:     log.Command,
		Args:        log.Args,
		ExitCode:    log.ExitCode,
		Stdout:      log.Stdout,
		Stderr:      log.Stderr,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)
	a.emitRuntime(EventOperation, published)
}

func (a *App) emitRuntime(name string, data interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	emit := a.emit
	a.mu.Unlock()
	if ctx != nil && emit != nil {
		emit(ctx, name, data)
	}
}

// setActiveOperation stores the cancellation handle for opID.
func (a *App) setActiveOperation(opID string, cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeOpID = opID
	a.cancel = cancel
}

// clearActiveOperation clears cancellation handles for completed operation IDs.
func (a *App) clearActiveOperation(opID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeOpID == opID {
		a.activeOpID = ""
		a.cancel = nil
	}
}

// runtimeContext returns current Wails runtime context for browser APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
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
