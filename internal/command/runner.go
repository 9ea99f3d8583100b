// Package command runs external processes and formats their command lines
// for logs and error text.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"al.essio.dev/pkg/shellescape"
)

// ErrTimeout marks a command that was killed because its deadline lapsed.
var ErrTimeout = errors.New("command timed out")

// Request describes one external process invocation.
type Request struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// String renders the request as a shell-like command line.
func (r Request) String() string {
	return Format(r.Name, r.Args)
}

// Result captures process output and exit code.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Log captures one external command invocation for UI event streams.
type Log struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// NewLog pairs a request with its result.
func NewLog(req Request, res Result) Log {
	return Log{
		Command:  req.Name,
		Args:     req.Args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// NewExecRunner returns the production runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes one command and captures stdout/stderr and exit code. A
// non-zero exit is returned as an error alongside the captured output.
func (r *ExecRunner) Run(ctx context.Context, req Request) (Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, req.Name, req.Args...)
	cmd.Dir = req.Dir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err == nil {
		return result, nil
	}

	result.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%s: %w after %s", req, ErrTimeout, req.Timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s: %w", req, ctxErr)
	}
	return result, err
}

// Format renders a command line for logs and error text, quoting arguments
// the way a POSIX shell would need them.
func Format(name string, args []string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellescape.Quote(name))
	for _, arg := range args {
		quoted = append(quoted, shellescape.Quote(arg))
	}
	return strings.Join(quoted, " ")
}

// Excerpt trims command output to a size suitable for error messages.
func Excerpt(output string, limit int) string {
	trimmed := strings.TrimSpace(output)
	if limit > 0 && len(trimmed) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		trimmed = trimmed[:cut] + "..."
	}
	return trimmed
}
