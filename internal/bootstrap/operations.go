package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"n8n-launcher/internal/command"
	"n8n-launcher/internal/domain"
	"n8n-launcher/internal/jobs"
)

// Wait defaults used when the caller passes no timeout.
const (
	StartWaitTimeout = 120 * time.Second
	StopWaitTimeout  = 15 * time.Second
	waitInterval     = time.Second
)

// ProgressInterval is how often the streaming start reports progress.
const ProgressInterval = 2 * time.Second

// startProgressMessages rotate while compose up runs. They are cosmetic and
// do not reflect what docker is doing.
var startProgressMessages = []string{
	"Checking Docker environment...",
	"Pulling n8n image (first run can take a few minutes)...",
	"Creating network and volumes...",
	"Starting n8n container...",
	"Waiting for n8n to initialize...",
}

// CheckDockerStatus reports whether docker is installed and its daemon answers.
func (a *App) CheckDockerStatus() domain.DockerStatus {
	deps := a.deps()
	if deps.stack == nil {
		return domain.DockerStatus{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	return deps.stack.DockerStatus(ctx)
}

// CheckN8NStatus runs the layered n8n health check.
func (a *App) CheckN8NStatus() domain.N8NStatus {
	deps := a.deps()
	if deps.stack == nil {
		return domain.N8NStatus{ErrorMessage: "launcher is not configured"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	return deps.stack.N8NStatus(ctx)
}

// GetOverview derives the docker and n8n states shown in the header. The n8n
// check is skipped while docker is not running.
func (a *App) GetOverview() domain.StackOverview {
	docker := a.CheckDockerStatus()
	n8n := domain.N8NStatus{}
	if docker.Running {
		n8n = a.CheckN8NStatus()
	}
	return domain.NewStackOverview(docker, n8n)
}

// StartN8N runs compose up and returns once the command finishes.
func (a *App) StartN8N() (string, error) {
	return a.runOperation(domain.OperationKindStart, false)
}

// StartN8NStreaming runs compose up while pushing progress messages to the
// UI on a fixed schedule.
func (a *App) StartN8NStreaming() (string, error) {
	return a.runOperation(domain.OperationKindStart, true)
}

// StopN8N runs compose down.
func (a *App) StopN8N() (string, error) {
	return a.runOperation(domain.OperationKindStop, false)
}

// CancelOperation cancels the running start/stop, if any. The compose
// process is killed and the operation finishes as failed.
func (a *App) CancelOperation() error {
	a.mu.Lock()
	cancel := a.cancel
	activeOpID := a.activeOpID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoActiveOperation
	}

	cancel()
	a.publishEvent(jobs.Event{
		OperationID: activeOpID,
		Type:        jobs.EventTypeProgress,
		Message:     "Cancellation requested",
	})
	return nil
}

// WaitForN8N polls until n8n reaches the wanted state. A non-positive
// timeout picks the default for the direction.
func (a *App) WaitForN8N(running bool, timeoutSeconds int) (domain.N8NStatus, error) {
	deps := a.deps()
	if deps.stack == nil {
		return domain.N8NStatus{}, fmt.Errorf("launcher is not configured")
	}

	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = StopWaitTimeout
		if running {
			timeout = StartWaitTimeout
		}
	}

	status, err := deps.stack.WaitForN8N(context.Background(), running, timeout, waitInterval)
	if err != nil {
		return status, fmt.Errorf("wait for n8n: %w", err)
	}
	return status, nil
}

// GetN8NLogs returns the tail of the stack logs.
func (a *App) GetN8NLogs() (string, error) {
	deps := a.deps()
	if deps.compose == nil {
		return "", fmt.Errorf("compose client is not configured")
	}
	logs, err := deps.compose.Logs(context.Background())
	if err != nil {
		return "", fmt.Errorf("get n8n logs: %w", err)
	}
	return logs, nil
}

// GetN8NImages lists the images the stack uses.
func (a *App) GetN8NImages() (string, error) {
	deps := a.deps()
	if deps.compose == nil {
		return "", fmt.Errorf("compose client is not configured")
	}
	images, err := deps.compose.Images(context.Background())
	if err != nil {
		return "", fmt.Errorf("get n8n images: %w", err)
	}
	return images, nil
}

// DebugPaths reports what the launcher resolved, for troubleshooting.
func (a *App) DebugPaths() domain.PathReport {
	deps := a.deps()
	if deps.paths == nil {
		return domain.PathReport{Errors: []string{"launcher is not configured"}}
	}
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	return deps.paths.Report(ctx)
}

// OpenN8N opens the n8n editor in the system browser.
func (a *App) OpenN8N() error {
	deps := a.deps()
	if deps.stack == nil {
		return fmt.Errorf("launcher is not configured")
	}
	return a.OpenURL(deps.stack.BaseURL())
}

// OpenURL opens an http(s) link in the system browser.
func (a *App) OpenURL(rawURL string) error {
	target, err := validateURL(rawURL)
	if err != nil {
		return err
	}

	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}

	a.mu.Lock()
	open := a.openURL
	a.mu.Unlock()
	if open == nil {
		return fmt.Errorf("browser is not available")
	}
	open(ctx, target)
	return nil
}

type operationText struct {
	begin   string
	success string
	failure string
}

func textFor(kind domain.OperationKind) operationText {
	if kind == domain.OperationKindStop {
		return operationText{
			begin:   "Stopping n8n",
			success: "N8N stopped successfully",
			failure: "stop n8n",
		}
	}
	return operationText{
		begin:   "Starting n8n",
		success: "N8N started successfully",
		failure: "start n8n",
	}
}

// runOperation guards, runs and reports one compose lifecycle command.
func (a *App) runOperation(kind domain.OperationKind, streaming bool) (string, error) {
	deps := a.deps()
	if deps.compose == nil {
		return "", fmt.Errorf("compose client is not configured")
	}

	opID := uuid.NewString()
	if err := a.Ops.Begin(opID, kind); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.setActiveOperation(opID, cancel)
	defer func() {
		cancel()
		a.clearActiveOperation(opID)
	}()

	text := textFor(kind)
	a.publishStatus(opID, a.Ops.Current().Status, text.begin)
	a.log().Info(text.begin, "operation", opID)

	run := deps.compose.Up
	if kind == domain.OperationKindStop {
		run = deps.compose.Down
	}

	var stopProgress func()
	if streaming {
		stopProgress = a.startProgress(ctx, opID, startProgressMessages)
	}
	started := time.Now()
	log, runErr := run(ctx)
	if stopProgress != nil {
		stopProgress()
	}

	if log.Command != "" {
		message := "Command completed"
		if runErr != nil {
			message = "Failed command"
		}
		a.publishLog(opID, message, log)
	}

	if err := a.Ops.Finish(runErr); err != nil {
		a.log().Warn("finish operation", "operation", opID, "err", err)
	}

	if runErr != nil {
		a.log().Warn(text.failure+" failed", "operation", opID, "elapsed", time.Since(started), "err", runErr)
		a.publishStatus(opID, domain.OperationStatusFailed, "Operation failed")
		a.publishEvent(jobs.Event{
			OperationID: opID,
			Type:        jobs.EventTypeError,
			Status:      domain.OperationStatusFailed,
			Message:     runErr.Error(),
		})
		if streaming {
			a.emitProgress(opID, "Failed to start n8n: "+errorSummary(runErr))
		}
		return "", fmt.Errorf("%s: %w", text.failure, runErr)
	}

	a.log().Info(text.success, "operation", opID, "elapsed", time.Since(started))
	a.publishStatus(opID, domain.OperationStatusDone, text.success)
	a.publishEvent(jobs.Event{
		OperationID: opID,
		Type:        jobs.EventTypeResult,
		Status:      domain.OperationStatusDone,
		Message:     text.success,
	})
	if streaming {
		a.emitProgress(opID, "n8n containers are up")
	}
	return text.success, nil
}

// startProgress emits rotating progress messages until stop is called. Stop
// cancels the ticker and waits for the goroutine to exit.
func (a *App) startProgress(ctx context.Context, opID string, messages []string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	interval := a.progressInterval
	if interval <= 0 {
		interval = ProgressInterval
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		started := time.Now()
		step := 0
		for {
			a.emitProgress(opID, progressMessage(messages, step, time.Since(started)))
			step++

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// progressMessage cycles through messages once, then repeats the last one
// with the elapsed time.
func progressMessage(messages []string, step int, elapsed time.Duration) string {
	if len(messages) == 0 {
		return fmt.Sprintf("Working (%ds elapsed)...", int(elapsed.Seconds()))
	}
	if step < len(messages) {
		return messages[step]
	}
	last := strings.TrimSuffix(messages[len(messages)-1], "...")
	return fmt.Sprintf("%s (%ds elapsed)...", last, int(elapsed.Seconds()))
}

// emitProgress records a progress event and pushes the plain text on the
// docker-progress channel.
func (a *App) emitProgress(opID, message string) {
	a.events.Publish(jobs.Event{
		OperationID: opID,
		Type:        jobs.EventTypeProgress,
		Message:     message,
	})
	a.emitRuntime(EventDockerProgress, message)
}

// errorSummary keeps the message short enough for a progress line.
func errorSummary(err error) string {
	var opErr *command.OperationError
	if errors.As(err, &opErr) && opErr.Message != "" {
		return opErr.Message
	}
	return command.Excerpt(err.Error(), 200)
}

func validateURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("url is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url %q has no host", trimmed)
	}
	return parsed.String(), nil
}
