package diagnostics

import (
	"context"
	"fmt"
	"os"
	"time"

	"n8n-launcher/internal/compose"
	"n8n-launcher/internal/config"
	"n8n-launcher/internal/domain"
	"n8n-launcher/internal/engine"
	"n8n-launcher/internal/toolpath"
)

// Diagnostic item IDs, also accepted by the fix action.
const (
	ItemDocker        = "tool_docker"
	ItemDockerCompose = "tool_docker-compose"
	ItemDaemon        = "docker_daemon"
	ItemEngine        = "docker_engine"
	ItemComposeFile   = "compose_file"
	ItemPort          = "n8n_port"
)

// RunTimeout bounds a full diagnostics pass.
const RunTimeout = 30 * time.Second

type toolResolver interface {
	Docker(ctx context.Context) (toolpath.Probe, error)
	Compose(ctx context.Context) (toolpath.Tool, error)
}

type dockerStatuser interface {
	DockerStatus(ctx context.Context) domain.DockerStatus
}

type engineProber interface {
	Probe(ctx context.Context) engine.Status
}

type manifestLocator interface {
	Locate() (compose.Location, error)
}

// Checker validates external tools, the daemon and the compose manifest.
type Checker struct {
	tools   toolResolver
	docker  dockerStatuser
	engine  engineProber
	locator manifestLocator
	lookup  func(string) (string, bool)
}

// NewChecker builds a checker from the launcher's components.
func NewChecker(tools toolResolver, docker dockerStatuser, engine engineProber, locator manifestLocator) *Checker {
	return &Checker{
		tools:   tools,
		docker:  docker,
		engine:  engine,
		locator: locator,
		lookup:  os.LookupEnv,
	}
}

// WithLookup sets the environment used to expand manifest variables.
func (c *Checker) WithLookup(lookup func(string) (string, bool)) *Checker {
	if lookup != nil {
		c.lookup = lookup
	}
	return c
}

// Run executes all checks and returns a combined report. Warnings do not
// count as failures.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	ctx, cancel := context.WithTimeout(ctx, RunTimeout)
	defer cancel()

	items := []domain.DiagnosticItem{
		c.checkDocker(ctx),
		c.checkCompose(ctx),
		c.checkDaemon(ctx),
		c.checkEngine(ctx),
		c.checkComposeFile(),
		c.checkPort(settings.N8NPort),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkDocker verifies the docker CLI answers --version.
func (c *Checker) checkDocker(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemDocker, Name: "docker"}

	probe, err := c.tools.Docker(ctx)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Docker CLI not found on PATH or in the usual install locations."
		item.Hint = "Install Docker Desktop (or Docker Engine on Linux) and restart the launcher."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s (%s)", probe.Path, probe.Version)
	return item
}

// checkCompose verifies docker-compose or the compose plugin is usable.
func (c *Checker) checkCompose(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemDockerCompose, Name: "docker-compose"}

	tool, err := c.tools.Compose(ctx)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Neither docker-compose nor the docker compose plugin is available."
		item.Hint = "Docker Desktop ships Compose; on Linux install the docker-compose-plugin package."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s (%s)", tool.String(), tool.Version)
	return item
}

// checkDaemon verifies `docker ps` succeeds.
func (c *Checker) checkDaemon(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemDaemon, Name: "Docker daemon"}

	status := c.docker.DockerStatus(ctx)
	switch {
	case !status.Installed:
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Docker is not installed."
		item.Hint = "Install Docker first."
	case !status.Running:
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Docker is installed but the daemon is not responding."
		item.Hint = "Start Docker Desktop or the docker service, then refresh."
		item.Fixable = true
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Docker daemon is running."
	}
	return item
}

// checkEngine pings the Engine API directly. A failure here while the CLI
// works usually means a non-default docker context, so it only warns.
func (c *Checker) checkEngine(ctx context.Context) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemEngine, Name: "Docker Engine API"}
	if c.engine == nil {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Engine API probe is disabled."
		return item
	}

	status := c.engine.Probe(ctx)
	if !status.Reachable {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Docker Engine API socket did not answer."
		item.Hint = status.Error
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Engine API %s reachable at %s", status.APIVersion, status.Host)
	return item
}

// checkComposeFile verifies a manifest can be found.
func (c *Checker) checkComposeFile() domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemComposeFile, Name: "Compose file"}

	loc, err := c.locator.Locate()
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = "Set a compose directory in settings, or let the launcher create the default n8n compose file."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", loc.File)
	return item
}

// checkPort validates the configured n8n port against the host port the
// compose manifest publishes. The default port defers to the manifest, so
// only an explicit port that disagrees with it fails.
func (c *Checker) checkPort(port int) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemPort, Name: "n8n port"}
	if !config.ValidPort(port) {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Invalid port: %d", port)
		item.Hint = fmt.Sprintf("Use a port between 1 and 65535 (default %d).", config.DefaultN8NPort)
		item.Fixable = true
		return item
	}

	published := c.publishedPort()
	if published > 0 && port != config.DefaultN8NPort && port != published {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Settings expect n8n on port %d but the compose file publishes %d", port, published)
		item.Hint = "Reset the port so the launcher follows the compose file, or change the published port."
		item.Fixable = true
		return item
	}

	expected := port
	if port == config.DefaultN8NPort && published > 0 {
		expected = published
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("n8n expected on port %d", expected)
	return item
}

// publishedPort returns the manifest's host port, or 0 when unknown.
func (c *Checker) publishedPort() int {
	loc, err := c.locator.Locate()
	if err != nil {
		return 0
	}
	manifest, err := compose.LoadManifest(loc.File, c.lookup)
	if err != nil {
		return 0
	}
	return manifest.HostPort
}
