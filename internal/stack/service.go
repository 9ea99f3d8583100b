// Package stack answers "is Docker up" and "is n8n up" by layering CLI
// checks under an HTTP probe.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"n8n-launcher/internal/command"
	"n8n-launcher/internal/compose"
	"n8n-launcher/internal/domain"
	"n8n-launcher/internal/health"
	"n8n-launcher/internal/toolpath"
)

// QueryTimeout bounds each docker query made by a status check.
const QueryTimeout = 10 * time.Second

// ErrWaitTimeout is returned when WaitForN8N gives up.
var ErrWaitTimeout = errors.New("timed out waiting for n8n")

type dockerResolver interface {
	Docker(ctx context.Context) (toolpath.Probe, error)
}

type manifestLocator interface {
	Locate() (compose.Location, error)
}

type httpProber interface {
	Probe(ctx context.Context, baseURL string) health.Result
}

// Config holds the port the HTTP layer probes. A zero or default port lets
// the manifest's published port take over.
type Config struct {
	Port      int
	LookupEnv func(string) (string, bool)
	Logger    *slog.Logger
}

// Service produces fresh status snapshots on every call.
type Service struct {
	runner  command.Runner
	tools   dockerResolver
	locator manifestLocator
	prober  httpProber
	port    int
	lookup  func(string) (string, bool)
	logger  *slog.Logger
}

// NewService wires a status service.
func NewService(runner command.Runner, tools dockerResolver, locator manifestLocator, prober httpProber, cfg Config) *Service {
	lookup := cfg.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:  runner,
		tools:   tools,
		locator: locator,
		prober:  prober,
		port:    cfg.Port,
		lookup:  lookup,
		logger:  logger,
	}
}

// DockerStatus reports whether docker is installed and its daemon answers.
func (s *Service) DockerStatus(ctx context.Context) domain.DockerStatus {
	probe, err := s.tools.Docker(ctx)
	if err != nil {
		s.logger.Debug("docker not found", "err", err)
		return domain.DockerStatus{}
	}

	return domain.DockerStatus{
		Installed: true,
		Running:   s.daemonRunning(ctx, probe.Path),
		Version:   probe.Version,
	}
}

// N8NStatus checks, in order: docker resolvable, daemon reachable, image
// present, container listed and running, HTTP endpoint answering. Running is
// true only when the last layer succeeds.
func (s *Service) N8NStatus(ctx context.Context) domain.N8NStatus {
	probe, err := s.tools.Docker(ctx)
	if err != nil {
		return domain.N8NStatus{ErrorMessage: "Docker is not installed or could not be found"}
	}
	if !s.daemonRunning(ctx, probe.Path) {
		return domain.N8NStatus{ErrorMessage: "Docker daemon is not running"}
	}

	manifest := s.Manifest()
	status := domain.N8NStatus{
		ImagesAvailable: s.imagePresent(ctx, probe.Path, manifest.Image),
	}

	containers, err := s.listContainers(ctx, probe.Path, manifest)
	if err != nil {
		status.ErrorMessage = fmt.Sprintf("Cannot list containers: %v", err)
		return status
	}
	status.ContainersExist = len(containers) > 0
	if !anyRunning(containers) {
		if status.ContainersExist {
			status.ErrorMessage = "n8n container is not running"
		} else {
			status.ErrorMessage = "n8n container does not exist"
		}
		return status
	}

	baseURL := health.BaseURL(s.Port(manifest))
	if res := s.prober.Probe(ctx, baseURL); res.Up {
		status.Running = true
		return status
	}
	status.ErrorMessage = fmt.Sprintf("n8n container is running but %s is not answering yet", baseURL)
	return status
}

// WaitForN8N polls N8NStatus every interval until Running equals want or
// timeout lapses. The last snapshot is always returned.
func (s *Service) WaitForN8N(ctx context.Context, want bool, timeout, interval time.Duration) (domain.N8NStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := s.N8NStatus(ctx)
		if status.Running == want {
			return status, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return status, fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
			}
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Manifest returns the parsed manifest, or defaults when none is readable.
func (s *Service) Manifest() compose.Manifest {
	loc, err := s.locator.Locate()
	if err != nil {
		return compose.DefaultManifest()
	}
	manifest, err := compose.LoadManifest(loc.File, s.lookup)
	if err != nil {
		s.logger.Warn("cannot parse compose file, using defaults", "file", loc.File, "err", err)
		return compose.DefaultManifest()
	}
	return manifest
}

// Port returns the port the HTTP layer probes for manifest.
func (s *Service) Port(manifest compose.Manifest) int {
	if s.port > 0 && s.port != compose.DefaultContainerPort {
		return s.port
	}
	if manifest.HostPort > 0 {
		return manifest.HostPort
	}
	return compose.DefaultContainerPort
}

// BaseURL returns the URL n8n is expected on right now.
func (s *Service) BaseURL() string {
	return health.BaseURL(s.Port(s.Manifest()))
}

func (s *Service) daemonRunning(ctx context.Context, docker string) bool {
	_, err := s.docker(ctx, docker, "ps", "-q")
	if err != nil {
		s.logger.Debug("docker daemon not reachable", "err", err)
		return false
	}
	return true
}

func (s *Service) imagePresent(ctx context.Context, docker, image string) bool {
	out, err := s.docker(ctx, docker, "images", "--format", "{{.Repository}}:{{.Tag}}")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if imageMatches(strings.TrimSpace(line), image) {
			return true
		}
	}
	return false
}

type container struct {
	Name  string
	State string
}

// listContainers returns the n8n containers. The docker name filter matches
// substrings, so names are checked again against the manifest.
func (s *Service) listContainers(ctx context.Context, docker string, manifest compose.Manifest) ([]container, error) {
	out, err := s.docker(ctx, docker, "ps", "-a", "--filter", "name="+manifest.ContainerFilter(), "--format", "{{.Names}}\t{{.State}}")
	if err != nil {
		return nil, err
	}

	var containers []container
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, state, _ := strings.Cut(line, "\t")
		if !manifest.MatchesContainer(name) {
			continue
		}
		containers = append(containers, container{Name: name, State: strings.ToLower(strings.TrimSpace(state))})
	}
	return containers, nil
}

func (s *Service) docker(ctx context.Context, docker string, args ...string) (string, error) {
	res, err := s.runner.Run(ctx, command.Request{
		Name:    docker,
		Args:    args,
		Timeout: QueryTimeout,
	})
	if err != nil {
		if detail := command.Excerpt(res.Stderr, 200); detail != "" {
			return "", fmt.Errorf("%w: %s", err, detail)
		}
		return "", err
	}
	return res.Stdout, nil
}

func anyRunning(containers []container) bool {
	for _, c := range containers {
		if c.State == "running" {
			return true
		}
	}
	return false
}

// imageMatches compares repositories, ignoring tags, digests and registry
// prefixes, so docker.n8n.io/n8nio/n8n matches n8nio/n8n:latest.
func imageMatches(listed, want string) bool {
	a, b := repository(listed), repository(want)
	if a == "" || b == "" || a == "<none>" {
		return false
	}
	return a == b || strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}

func repository(image string) string {
	image = strings.TrimSpace(image)
	if i := strings.IndexByte(image, '@'); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndexByte(image, ':'); i > strings.LastIndexByte(image, '/') {
		image = image[:i]
	}
	return strings.ToLower(image)
}
