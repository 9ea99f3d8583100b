// Package toolpath locates the docker and docker-compose executables by
// probing a fixed list of candidates.
package toolpath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"n8n-launcher/internal/command"
)

// ErrNotFound is returned when no candidate answers a version probe.
var ErrNotFound = errors.New("executable not found")

// DefaultProbeTimeout bounds each `--version` attempt.
const DefaultProbeTimeout = 5 * time.Second

// Probe is a working executable together with its reported version.
type Probe struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Tool is an invocable command: an executable plus leading arguments.
// The Compose v2 plugin resolves to {Path: docker, Args: [compose]}.
type Tool struct {
	Path    string   `json:"path"`
	Args    []string `json:"args,omitempty"`
	Version string   `json:"version"`
}

// Command returns the executable and full argument list for args.
func (t Tool) Command(args ...string) (string, []string) {
	full := make([]string, 0, len(t.Args)+len(args))
	full = append(full, t.Args...)
	full = append(full, args...)
	return t.Path, full
}

// String renders the tool the way a user would type it.
func (t Tool) String() string {
	return command.Format(t.Path, t.Args)
}

// Options configures explicit paths that are probed before the defaults.
type Options struct {
	DockerPath   string
	ComposePath  string
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Resolver probes candidate paths and remembers the last good one per tool.
type Resolver struct {
	runner       command.Runner
	lookPath     func(string) (string, error)
	candidates   func(tool string) []string
	explicit     map[string]string
	probeTimeout time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver builds a resolver using real OS lookups.
func NewResolver(runner command.Runner, opts Options) *Resolver {
	return newResolver(runner, exec.LookPath, currentCandidates, opts)
}

// NewResolverForTests creates a resolver with injectable dependencies.
func NewResolverForTests(
	runner command.Runner,
	lookPath func(string) (string, error),
	candidates func(tool string) []string,
	opts Options,
) *Resolver {
	return newResolver(runner, lookPath, candidates, opts)
}

func newResolver(
	runner command.Runner,
	lookPath func(string) (string, error),
	candidates func(tool string) []string,
	opts Options,
) *Resolver {
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		runner:     runner,
		lookPath:   lookPath,
		candidates: candidates,
		explicit: map[string]string{
			Docker:        strings.TrimSpace(opts.DockerPath),
			DockerCompose: strings.TrimSpace(opts.ComposePath),
		},
		probeTimeout: timeout,
		logger:       logger,
		cache:        make(map[string]string),
	}
}

// Candidates returns the ordered, de-duplicated probe list for tool.
func (r *Resolver) Candidates(tool string) []string {
	list := make([]string, 0, 8)
	if explicit := r.explicit[tool]; explicit != "" {
		list = append(list, explicit)
	}
	if r.candidates != nil {
		list = append(list, r.candidates(tool)...)
	}

	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, candidate := range list {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// Resolve returns the first candidate for tool whose `--version` succeeds.
// The cached path from a previous success is tried before the full list.
func (r *Resolver) Resolve(ctx context.Context, tool string) (Probe, error) {
	if cached := r.cached(tool); cached != "" {
		if version, err := r.probe(ctx, cached, "--version"); err == nil {
			return Probe{Path: cached, Version: version}, nil
		}
		r.forget(tool, cached)
	}

	candidates := r.Candidates(tool)
	attempts := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return Probe{}, err
		}

		path, err := r.locate(candidate)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", candidate, err))
			continue
		}

		version, err := r.probe(ctx, path, "--version")
		if err != nil {
			r.logger.Debug("executable probe failed", "tool", tool, "path", path, "err", err)
			attempts = append(attempts, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		r.remember(tool, path)
		r.logger.Debug("executable resolved", "tool", tool, "path", path, "version", version)
		return Probe{Path: path, Version: version}, nil
	}

	return Probe{}, fmt.Errorf("%s: %w (tried: %s)", tool, ErrNotFound, strings.Join(attempts, "; "))
}

// Docker resolves the docker CLI.
func (r *Resolver) Docker(ctx context.Context) (Probe, error) {
	return r.Resolve(ctx, Docker)
}

// Compose resolves a compose command. A standalone docker-compose binary is
// preferred; the `docker compose` plugin is the fallback.
func (r *Resolver) Compose(ctx context.Context) (Tool, error) {
	standalone, err := r.Resolve(ctx, DockerCompose)
	if err == nil {
		return Tool{Path: standalone.Path, Version: standalone.Version}, nil
	}

	docker, dockerErr := r.Docker(ctx)
	if dockerErr != nil {
		return Tool{}, err
	}
	version, pluginErr := r.probe(ctx, docker.Path, "compose", "version")
	if pluginErr != nil {
		return Tool{}, fmt.Errorf("%w; docker compose plugin: %v", err, pluginErr)
	}
	return Tool{Path: docker.Path, Args: []string{"compose"}, Version: version}, nil
}

// locate turns bare names into absolute paths through PATH lookup.
func (r *Resolver) locate(candidate string) (string, error) {
	if filepath.IsAbs(candidate) || strings.ContainsRune(candidate, filepath.Separator) {
		return candidate, nil
	}
	if r.lookPath == nil {
		return candidate, nil
	}
	return r.lookPath(candidate)
}

// probe runs path with args and returns trimmed stdout on success.
func (r *Resolver) probe(ctx context.Context, path string, args ...string) (string, error) {
	res, err := r.runner.Run(ctx, command.Request{
		Name:    path,
		Args:    args,
		Timeout: r.probeTimeout,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *Resolver) cached(tool string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache[tool]
}

func (r *Resolver) remember(tool, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[tool] = path
}

func (r *Resolver) forget(tool, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache[tool] == path {
		delete(r.cache, tool)
	}
}
