// Package engine checks whether the Docker Engine API answers, independent
// of the docker CLI.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/docker/docker/client"
)

// DefaultTimeout bounds each ping attempt.
const DefaultTimeout = 2 * time.Second

// envHost marks the attempt that honours DOCKER_HOST and friends.
const envHost = "env"

// Status is the outcome of probing the Engine API.
type Status struct {
	Reachable  bool   `json:"reachable"`
	Host       string `json:"host,omitempty"`
	APIVersion string `json:"apiVersion,omitempty"`
	OSType     string `json:"osType,omitempty"`
	Error      string `json:"error,omitempty"`
}

// pingInfo is what one successful ping reports.
type pingInfo struct {
	Host       string
	APIVersion string
	OSType     string
}

// pingFunc pings the engine at host; envHost means environment settings.
type pingFunc func(ctx context.Context, host string) (pingInfo, error)

// Prober tries the environment first, then well-known socket locations.
type Prober struct {
	hosts   []string
	timeout time.Duration
	ping    pingFunc
}

// NewProber builds a prober for the current OS.
func NewProber() *Prober {
	home, _ := os.UserHomeDir()
	return &Prober{
		hosts:   DefaultHosts(goruntime.GOOS, home),
		timeout: DefaultTimeout,
		ping:    pingDocker,
	}
}

// NewProberForTests creates a prober with an injected ping function.
func NewProberForTests(hosts []string, timeout time.Duration, ping func(ctx context.Context, host string) (string, error)) *Prober {
	return &Prober{
		hosts:   hosts,
		timeout: timeout,
		ping: func(ctx context.Context, host string) (pingInfo, error) {
			version, err := ping(ctx, host)
			return pingInfo{Host: host, APIVersion: version}, err
		},
	}
}

// DefaultHosts lists engine endpoints in probe order.
func DefaultHosts(goos, home string) []string {
	if goos == "windows" {
		return []string{envHost, "npipe:////./pipe/docker_engine", "npipe:////./pipe/dockerDesktopLinuxEngine"}
	}

	hosts := []string{envHost}
	if home != "" {
		hosts = append(hosts, "unix://"+filepath.Join(home, ".docker", "run", "docker.sock"))
	}
	hosts = append(hosts, "unix:///var/run/docker.sock")
	if home != "" {
		hosts = append(hosts, "unix://"+filepath.Join(home, ".colima", "docker.sock"))
	}
	return hosts
}

// Probe returns the first reachable engine, or an unreachable status listing
// every failure.
func (p *Prober) Probe(ctx context.Context) Status {
	failures := make([]string, 0, len(p.hosts))
	for _, host := range p.hosts {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err.Error())
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		info, err := p.ping(attemptCtx, host)
		cancel()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", host, err))
			continue
		}

		return Status{
			Reachable:  true,
			Host:       info.Host,
			APIVersion: info.APIVersion,
			OSType:     info.OSType,
		}
	}

	return Status{Error: strings.Join(failures, "; ")}
}

// pingDocker opens a client for host, pings it and closes it.
func pingDocker(ctx context.Context, host string) (pingInfo, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host == envHost {
		opts = append(opts, client.FromEnv)
	} else {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return pingInfo{}, err
	}
	defer cli.Close()

	ping, err := cli.Ping(ctx)
	if err != nil {
		return pingInfo{}, err
	}
	return pingInfo{
		Host:       cli.DaemonHost(),
		APIVersion: ping.APIVersion,
		OSType:     ping.OSType,
	}, nil
}
