// Package health probes the n8n HTTP endpoints.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds each endpoint request.
const DefaultTimeout = 3 * time.Second

// Endpoints are tried in order; the first answering one wins.
var Endpoints = []string{"/healthz", "/api/v1/health", "/"}

// Result reports which endpoint answered and with what status.
type Result struct {
	Up       bool   `json:"up"`
	Endpoint string `json:"endpoint,omitempty"`
	Status   int    `json:"status,omitempty"`
}

// Prober issues GET requests against the n8n base URL.
type Prober struct {
	client    *http.Client
	endpoints []string
}

// NewProber builds a prober with a per-request timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		client:    &http.Client{Timeout: timeout},
		endpoints: Endpoints,
	}
}

// NewProberForTests creates a prober with an injected client.
func NewProberForTests(client *http.Client, endpoints []string) *Prober {
	return &Prober{client: client, endpoints: endpoints}
}

// BaseURL returns the loopback URL n8n is expected on.
func BaseURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// Probe tries each endpoint once. 2xx and 401 mean the service is up; n8n
// answers 401 when basic auth is enabled.
func (p *Prober) Probe(ctx context.Context, baseURL string) Result {
	for _, endpoint := range p.endpoints {
		if ctx.Err() != nil {
			return Result{}
		}

		status, err := p.get(ctx, baseURL+endpoint)
		if err != nil {
			continue
		}
		if IsUp(status) {
			return Result{Up: true, Endpoint: endpoint, Status: status}
		}
	}
	return Result{}
}

// IsUp reports whether an HTTP status indicates a live n8n instance.
func IsUp(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusUnauthorized
}

func (p *Prober) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "n8n-launcher")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}
