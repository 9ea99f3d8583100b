package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"n8n-launcher/internal/command"
	"n8n-launcher/internal/toolpath"
)

// Timeouts for compose subcommands.
const (
	UpTimeout     = 300 * time.Second
	DownTimeout   = 120 * time.Second
	LogsTimeout   = 30 * time.Second
	ImagesTimeout = 15 * time.Second

	// LogTail is how many lines `logs` returns.
	LogTail = 100
)

// Stages reported in OperationError.
const (
	StageResolve = "resolve"
	StageStart   = "start"
	StageStop    = "stop"
	StageLogs    = "logs"
	StageImages  = "images"
)

// toolResolver is the part of toolpath.Resolver the client needs.
type toolResolver interface {
	Compose(ctx context.Context) (toolpath.Tool, error)
}

// manifestLocator is the part of Locator the client needs.
type manifestLocator interface {
	Locate() (Location, error)
}

// Client runs docker-compose subcommands against the located manifest.
type Client struct {
	runner  command.Runner
	tools   toolResolver
	locator manifestLocator
	logger  *slog.Logger
}

// NewClient wires a compose client.
func NewClient(runner command.Runner, tools toolResolver, locator manifestLocator, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		runner:  runner,
		tools:   tools,
		locator: locator,
		logger:  logger,
	}
}

// Up runs `up -d` and returns the command log.
func (c *Client) Up(ctx context.Context) (command.Log, error) {
	return c.run(ctx, StageStart, "docker-compose up failed", UpTimeout, "up", "-d")
}

// Down runs `down`.
func (c *Client) Down(ctx context.Context) (command.Log, error) {
	return c.run(ctx, StageStop, "docker-compose down failed", DownTimeout, "down")
}

// Logs returns the last LogTail lines of stack output.
func (c *Client) Logs(ctx context.Context) (string, error) {
	log, err := c.run(ctx, StageLogs, "docker-compose logs failed", LogsTimeout, "logs", fmt.Sprintf("--tail=%d", LogTail))
	if err != nil {
		return "", err
	}
	return log.Stdout, nil
}

// Images lists images used by the stack.
func (c *Client) Images(ctx context.Context) (string, error) {
	log, err := c.run(ctx, StageImages, "docker-compose images failed", ImagesTimeout, "images")
	if err != nil {
		return "", err
	}
	return log.Stdout, nil
}

// Locate exposes the manifest location used for every command.
func (c *Client) Locate() (Location, error) {
	return c.locator.Locate()
}

func (c *Client) run(ctx context.Context, stage, failure string, timeout time.Duration, args ...string) (command.Log, error) {
	loc, err := c.locator.Locate()
	if err != nil {
		return command.Log{}, &command.OperationError{
			Stage:   StageResolve,
			Message: "cannot find docker-compose file",
			Err:     err,
		}
	}

	tool, err := c.tools.Compose(ctx)
	if err != nil {
		return command.Log{}, &command.OperationError{
			Stage:   StageResolve,
			Message: "docker-compose is not installed",
			Err:     err,
		}
	}

	name, fullArgs := tool.Command(append([]string{"-f", loc.File}, args...)...)
	req := command.Request{
		Name:    name,
		Args:    fullArgs,
		Dir:     loc.Dir,
		Timeout: timeout,
	}

	started := time.Now()
	res, runErr := c.runner.Run(ctx, req)
	log := command.NewLog(req, res)
	if runErr != nil {
		c.logger.Warn("compose command failed",
			"cmd", req.String(), "exit", res.ExitCode, "elapsed", time.Since(started), "err", runErr)
		if errors.Is(runErr, command.ErrTimeout) {
			failure = fmt.Sprintf("%s: timed out after %s", failure, timeout)
		}
		return log, &command.OperationError{
			Stage:   stage,
			Message: failure,
			Log:     log,
			Err:     runErr,
		}
	}

	c.logger.Debug("compose command finished", "cmd", req.String(), "elapsed", time.Since(started))
	return log, nil
}
