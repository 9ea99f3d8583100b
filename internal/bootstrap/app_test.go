package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"n8n-launcher/internal/command"
	"n8n-launcher/internal/compose"
	"n8n-launcher/internal/domain"
	"n8n-launcher/internal/jobs"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saved    []domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save records the saved settings.
func (s *fakeStore) Save(cfg domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = cfg
	s.saved = append(s.saved, cfg)
	return nil
}

// fakeCompose allows injecting custom up/down behavior per test.
type fakeCompose struct {
	up   func(ctx context.Context) (command.Log, error)
	down func(ctx context.Context) (command.Log, error)
	logs string
	err  error
}

func (c *fakeCompose) Up(ctx context.Context) (command.Log, error) {
	if c.up == nil {
		return command.Log{}, nil
	}
	return c.up(ctx)
}

func (c *fakeCompose) Down(ctx context.Context) (command.Log, error) {
	if c.down == nil {
		return command.Log{}, nil
	}
	return c.down(ctx)
}

func (c *fakeCompose) Logs(context.Context) (string, error) {
	return c.logs, c.err
}

func (c *fakeCompose) Images(context.Context) (string, error) {
	return "n8n  n8nio/n8n  latest", c.err
}

func (c *fakeCompose) Locate() (compose.Location, error) {
	return compose.Location{Dir: "/stack", File: "/stack/docker-compose.yml"}, nil
}

// fakeStack returns canned snapshots and records calls.
type fakeStack struct {
	mu          sync.Mutex
	docker      domain.DockerStatus
	n8n         domain.N8NStatus
	n8nCalls    int
	waitWant    bool
	waitTimeout time.Duration
	waitErr     error
}

func (s *fakeStack) DockerStatus(context.Context) domain.DockerStatus {
	return s.docker
}

func (s *fakeStack) N8NStatus(context.Context) domain.N8NStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n8nCalls++
	return s.n8n
}

func (s *fakeStack) WaitForN8N(_ context.Context, want bool, timeout, _ time.Duration) (domain.N8NStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitWant = want
	s.waitTimeout = timeout
	return s.n8n, s.waitErr
}

func (s *fakeStack) BaseURL() string {
	return "http://localhost:5678"
}

// fakeChecker records the settings each run received.
type fakeChecker struct {
	mu   sync.Mutex
	runs []domain.Settings
}

func (c *fakeChecker) Run(_ context.Context, settings domain.Settings) domain.DiagnosticReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, settings)
	return domain.DiagnosticReport{Items: []domain.DiagnosticItem{{ID: "n8n_port", Status: domain.DiagnosticStatusPass}}}
}

func noEnv(string) (string, bool) {
	return "", false
}

func newTestApp(runner composeRunner) *App {
	return &App{
		Store:     &fakeStore{},
		Ops:       jobs.NewManager(),
		Stack:     &fakeStack{},
		Compose:   runner,
		lookupEnv: noEnv,
		events:    jobs.NewEventBus(100),
	}
}

// TestStartN8NEnforcesSingleOperation checks the single-operation guard.
func TestStartN8NEnforcesSingleOperation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	app := newTestApp(&fakeCompose{up: func(ctx context.Context) (command.Log, error) {
		close(started)
		<-release
		return command.Log{Command: "docker-compose", Args: []string{"up", "-d"}}, nil
	}})

	done := make(chan error, 1)
	go func() {
		_, err := app.StartN8N()
		done <- err
	}()
	<-started

	if _, err := app.StopN8N(); !errors.Is(err, jobs.ErrOperationInProgress) {
		t.Fatalf("second operation error = %v, want %v", err, jobs.ErrOperationInProgress)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first start: %v", err)
	}
	if got := app.CurrentOperation().Status; got != domain.OperationStatusDone {
		t.Fatalf("status = %s, want %s", got, domain.OperationStatusDone)
	}
}

// TestStartN8NPublishesLogAndResultEvents checks event flow on success.
func TestStartN8NPublishesLogAndResultEvents(t *testing.T) {
	app := newTestApp(&fakeCompose{up: func(context.Context) (command.Log, error) {
		return command.Log{Command: "docker-compose", Args: []string{"up", "-d"}}, nil
	}})

	msg, err := app.StartN8N()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if msg != "N8N started successfully" {
		t.Fatalf("message = %q", msg)
	}

	events := app.OperationEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	assertEventTypeExists(t, events, jobs.EventTypeResult)

	opID := app.CurrentOperation().ID
	if opID == "" {
		t.Fatal("operation id is empty")
	}
	if got := len(app.events.ForOperation(opID)); got != len(events) {
		t.Fatalf("events for operation = %d, want %d", got, len(events))
	}
}

// TestStopN8NFailurePublishesErrorEvents checks error path emissions.
func TestStopN8NFailurePublishesErrorEvents(t *testing.T) {
	failed := command.Log{Command: "docker-compose", Args: []string{"down"}, ExitCode: 1, Stderr: "no such service"}
	app := newTestApp(&fakeCompose{down: func(context.Context) (command.Log, error) {
		return failed, &command.OperationError{
			Stage:   compose.StageStop,
			Message: "docker-compose down failed",
			Log:     failed,
			Err:     errors.New("exit status 1"),
		}
	}})

	_, err := app.StopN8N()
	var opErr *command.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("error = %v, want OperationError", err)
	}
	if !strings.Contains(err.Error(), "no such service") {
		t.Fatalf("error %q does not include stderr", err)
	}
	if got := app.CurrentOperation().Status; got != domain.OperationStatusFailed {
		t.Fatalf("status = %s, want %s", got, domain.OperationStatusFailed)
	}

	events := app.OperationEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeError)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
}

// TestStartN8NStreamingStopsProgressWhenCommandReturns checks the ticker lifecycle.
func TestStartN8NStreamingStopsProgressWhenCommandReturns(t *testing.T) {
	app := newTestApp(&fakeCompose{up: func(context.Context) (command.Log, error) {
		time.Sleep(40 * time.Millisecond)
		return command.Log{Command: "docker-compose"}, nil
	}})
	app.progressInterval = 5 * time.Millisecond

	var mu sync.Mutex
	var pushed []string
	app.runtimeCtx = context.Background()
	app.emit = func(_ context.Context, name string, data ...interface{}) {
		if name != EventDockerProgress {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, data[0].(string))
	}

	if _, err := app.StartN8NStreaming(); err != nil {
		t.Fatalf("start: %v", err)
	}

	mu.Lock()
	count := len(pushed)
	first := pushed[0]
	last := pushed[count-1]
	mu.Unlock()

	if first != startProgressMessages[0] {
		t.Fatalf("first progress = %q, want %q", first, startProgressMessages[0])
	}
	if last != "n8n containers are up" {
		t.Fatalf("last progress = %q", last)
	}
	if count < 3 {
		t.Fatalf("progress messages = %d, want at least 3", count)
	}

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	after := len(pushed)
	mu.Unlock()
	if after != count {
		t.Fatalf("progress continued after return: %d -> %d", count, after)
	}
}

// TestStartN8NStreamingReportsFailure checks the final failure message.
func TestStartN8NStreamingReportsFailure(t *testing.T) {
	app := newTestApp(&fakeCompose{up: func(context.Context) (command.Log, error) {
		return command.Log{}, &command.OperationError{Stage: compose.StageResolve, Message: "cannot find docker-compose file"}
	}})
	app.progressInterval = time.Hour

	if _, err := app.StartN8NStreaming(); err == nil {
		t.Fatal("expected error")
	}

	var last string
	for _, event := range app.OperationEvents(0) {
		if event.Type == jobs.EventTypeProgress {
			last = event.Message
		}
	}
	if last != "Failed to start n8n: cannot find docker-compose file" {
		t.Fatalf("last progress = %q", last)
	}
}

// TestCancelOperationWithoutActiveOperation checks the idle cancel error.
func TestCancelOperationWithoutActiveOperation(t *testing.T) {
	app := newTestApp(&fakeCompose{})
	if err := app.CancelOperation(); !errors.Is(err, jobs.ErrNoActiveOperation) {
		t.Fatalf("cancel error = %v, want %v", err, jobs.ErrNoActiveOperation)
	}
}

// TestCancelOperationStopsRunningCommand checks cancellation reaches compose.
func TestCancelOperationStopsRunningCommand(t *testing.T) {
	started := make(chan struct{})
	app := newTestApp(&fakeCompose{up: func(ctx context.Context) (command.Log, error) {
		close(started)
		<-ctx.Done()
		return command.Log{}, ctx.Err()
	}})

	done := make(chan error, 1)
	go func() {
		_, err := app.StartN8N()
		done <- err
	}()
	<-started

	if err := app.CancelOperation(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("start error = %v, want %v", err, context.Canceled)
	}
	if got := app.CurrentOperation().Status; got != domain.OperationStatusFailed {
		t.Fatalf("status = %s, want %s", got, domain.OperationStatusFailed)
	}
}

// TestGetOverviewSkipsN8NCheckWhenDockerStopped checks layered overview.
func TestGetOverviewSkipsN8NCheckWhenDockerStopped(t *testing.T) {
	stack := &fakeStack{
		docker: domain.DockerStatus{Installed: true, Running: false},
		n8n:    domain.N8NStatus{Running: true},
	}
	app := newTestApp(&fakeCompose{})
	app.Stack = stack

	got := app.GetOverview()
	want := domain.StackOverview{Docker: domain.ServiceStateStopped, N8N: domain.ServiceStateStopped}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("overview mismatch (-want +got):\n%s", diff)
	}
	if stack.n8nCalls != 0 {
		t.Fatalf("n8n status calls = %d, want 0", stack.n8nCalls)
	}
}

// TestGetOverviewReportsRunningStack checks the happy path.
func TestGetOverviewReportsRunningStack(t *testing.T) {
	app := newTestApp(&fakeCompose{})
	app.Stack = &fakeStack{
		docker: domain.DockerStatus{Installed: true, Running: true, Version: "Docker version 27.0.3"},
		n8n:    domain.N8NStatus{Running: true, ContainersExist: true},
	}

	got := app.GetOverview()
	want := domain.StackOverview{Docker: domain.ServiceStateRunning, N8N: domain.ServiceStateRunning}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("overview mismatch (-want +got):\n%s", diff)
	}
}

// TestWaitForN8NDefaultsTimeoutByDirection checks default wait budgets.
func TestWaitForN8NDefaultsTimeoutByDirection(t *testing.T) {
	stack := &fakeStack{}
	app := newTestApp(&fakeCompose{})
	app.Stack = stack

	if _, err := app.WaitForN8N(true, 0); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if stack.waitTimeout != StartWaitTimeout || !stack.waitWant {
		t.Fatalf("wait = (%v, %v), want (true, %v)", stack.waitWant, stack.waitTimeout, StartWaitTimeout)
	}

	if _, err := app.WaitForN8N(false, -1); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if stack.waitTimeout != StopWaitTimeout {
		t.Fatalf("timeout = %v, want %v", stack.waitTimeout, StopWaitTimeout)
	}

	if _, err := app.WaitForN8N(true, 7); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if stack.waitTimeout != 7*time.Second {
		t.Fatalf("timeout = %v, want 7s", stack.waitTimeout)
	}
}

// TestGetN8NLogsWrapsErrors checks log retrieval error text.
func TestGetN8NLogsWrapsErrors(t *testing.T) {
	app := newTestApp(&fakeCompose{logs: "n8n | ready\n"})
	logs, err := app.GetN8NLogs()
	if err != nil || logs != "n8n | ready\n" {
		t.Fatalf("logs = %q, %v", logs, err)
	}

	app.Compose = &fakeCompose{err: errors.New("boom")}
	if _, err := app.GetN8NLogs(); err == nil || !strings.HasPrefix(err.Error(), "get n8n logs:") {
		t.Fatalf("error = %v", err)
	}
}

func TestGetN8NImagesWrapsErrors(t *testing.T) {
	app := newTestApp(&fakeCompose{})
	images, err := app.GetN8NImages()
	if err != nil || !strings.Contains(images, "n8nio/n8n") {
		t.Fatalf("images = %q, %v", images, err)
	}

	app.Compose = &fakeCompose{err: errors.New("boom")}
	if _, err := app.GetN8NImages(); err == nil || !strings.HasPrefix(err.Error(), "get n8n images:") {
		t.Fatalf("error = %v", err)
	}
}

// TestSaveSettingsNormalizesAndRerunsDiagnostics checks persistence and refresh.
func TestSaveSettingsNormalizesAndRerunsDiagnostics(t *testing.T) {
	store := &fakeStore{}
	checker := &fakeChecker{}
	app := newTestApp(&fakeCompose{})
	app.Store = store
	app.checker = checker

	saved, err := app.SaveSettings(domain.Settings{N8NPort: 70000, ComposeDir: "  /srv/n8n  ", LogLevel: " DEBUG "})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	want := domain.Settings{N8NPort: 5678, ComposeDir: "/srv/n8n", LogLevel: "debug"}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Fatalf("saved mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]domain.Settings{want}, store.saved); diff != "" {
		t.Fatalf("store mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]domain.Settings{want}, checker.runs); diff != "" {
		t.Fatalf("checker runs mismatch (-want +got):\n%s", diff)
	}
	if got := len(app.GetDiagnostics().Items); got != 1 {
		t.Fatalf("diagnostic items = %d, want 1", got)
	}
}

// TestGetSettingsAppliesEnvOverrides checks env precedence over the store.
func TestGetSettingsAppliesEnvOverrides(t *testing.T) {
	app := newTestApp(&fakeCompose{})
	app.Store = &fakeStore{settings: domain.Settings{N8NPort: 5678, LogLevel: "info"}}
	app.lookupEnv = func(key string) (string, bool) {
		if key == "N8N_PORT" {
			return "8080", true
		}
		return "", false
	}

	got, err := app.GetSettings()
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.N8NPort != 8080 {
		t.Fatalf("port = %d, want 8080", got.N8NPort)
	}
}

// TestOpenN8NUsesStackBaseURL checks browser routing.
func TestOpenN8NUsesStackBaseURL(t *testing.T) {
	app := newTestApp(&fakeCompose{})
	app.runtimeCtx = context.Background()
	var opened string
	app.openURL = func(_ context.Context, url string) {
		opened = url
	}

	if err := app.OpenN8N(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "http://localhost:5678" {
		t.Fatalf("opened = %q", opened)
	}
}

// TestOpenURLRejectsUnsupportedSchemes checks URL validation.
func TestOpenURLRejectsUnsupportedSchemes(t *testing.T) {
	app := newTestApp(&fakeCompose{})
	app.runtimeCtx = context.Background()
	app.openURL = func(context.Context, string) {
		t.Fatal("browser should not open")
	}

	for _, raw := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "https://"} {
		if err := app.OpenURL(raw); err == nil {
			t.Fatalf("OpenURL(%q) succeeded, want error", raw)
		}
	}
}

// TestOpenURLRequiresRuntime checks the pre-startup guard.
func TestOpenURLRequiresRuntime(t *testing.T) {
	app := newTestApp(&fakeCompose{})
	if err := app.OpenURL("https://docs.docker.com"); err == nil {
		t.Fatal("expected runtime error")
	}
}

func TestProgressMessageCyclesThenReportsElapsed(t *testing.T) {
	messages := []string{"one...", "two..."}
	if got := progressMessage(messages, 1, time.Second); got != "two..." {
		t.Fatalf("step 1 = %q", got)
	}
	if got := progressMessage(messages, 5, 12*time.Second); got != "two (12s elapsed)..." {
		t.Fatalf("step 5 = %q", got)
	}
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
