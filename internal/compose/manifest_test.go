package compose

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func envOf(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// TestParseManifestDefaultBundle checks the embedded manifest parses.
func TestParseManifestDefaultBundle(t *testing.T) {
	got, err := ParseManifest(DefaultManifestYAML(), envOf(nil))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	want := Manifest{
		ServiceName:   "n8n",
		Image:         "docker.n8n.io/n8nio/n8n",
		ContainerName: "n8n",
		HostPort:      5678,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

// TestParseManifestExpandsPortVariable checks ${VAR:-default} handling.
func TestParseManifestExpandsPortVariable(t *testing.T) {
	got, err := ParseManifest(DefaultManifestYAML(), envOf(map[string]string{"N8N_PORT": "15678"}))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if got.HostPort != 15678 {
		t.Fatalf("host port = %d, want 15678", got.HostPort)
	}
}

// TestParseManifestPicksN8NAmongServices checks service selection and the
// long port syntax.
func TestParseManifestPicksN8NAmongServices(t *testing.T) {
	data := []byte(`
services:
  postgres:
    image: postgres:16
    ports: ["5432:5432"]
  automation:
    image: n8nio/n8n:1.64.0
    ports:
      - target: 5678
        published: "8080"
        protocol: tcp
`)
	got, err := ParseManifest(data, envOf(nil))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	want := Manifest{
		ServiceName: "automation",
		Image:       "n8nio/n8n:1.64.0",
		HostPort:    8080,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
	if got.ContainerFilter() != "automation" {
		t.Fatalf("filter = %q, want automation", got.ContainerFilter())
	}
}

func TestManifestMatchesContainer(t *testing.T) {
	byService := Manifest{ServiceName: "n8n"}
	byName := Manifest{ServiceName: "automation", ContainerName: "my-n8n"}

	cases := []struct {
		manifest Manifest
		name     string
		want     bool
	}{
		{byService, "n8n", true},
		{byService, "/n8n", true},
		{byService, "stack-n8n-1", true},
		{byService, "stack_n8n_2", true},
		{byService, "n8n-postgres", false},
		{byService, "stack-n8n-postgres-1", false},
		{byService, "stack-n8n-worker", false},
		{byName, "my-n8n", true},
		{byName, "my-n8n-old", false},
		{byName, "stack-automation-1", false},
	}
	for _, tc := range cases {
		if got := tc.manifest.MatchesContainer(tc.name); got != tc.want {
			t.Errorf("MatchesContainer(%q) with %+v = %v, want %v", tc.name, tc.manifest, got, tc.want)
		}
	}
}

// TestParseManifestShortPortWithHostIP checks ip:host:container/proto specs.
func TestParseManifestShortPortWithHostIP(t *testing.T) {
	data := []byte(`
services:
  n8n:
    image: n8nio/n8n
    ports:
      - "127.0.0.1:9000:5678/tcp"
`)
	got, err := ParseManifest(data, envOf(nil))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if got.HostPort != 9000 {
		t.Fatalf("host port = %d, want 9000", got.HostPort)
	}
}

// TestParseManifestErrors checks malformed and unrelated manifests.
func TestParseManifestErrors(t *testing.T) {
	cases := map[string]string{
		"invalid yaml": "services: [",
		"no services":  "version: '3'",
		"no n8n":       "services:\n  db:\n    image: postgres\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(data), envOf(nil)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// TestExpandVars checks default and set-but-empty semantics.
func TestExpandVars(t *testing.T) {
	lookup := envOf(map[string]string{"EMPTY": "", "SET": "x"})
	cases := map[string]string{
		"${SET:-d}":   "x",
		"${EMPTY:-d}": "d",
		"${EMPTY-d}":  "",
		"${UNSET-d}":  "d",
		"${UNSET}":    "",
		"plain":       "plain",
	}
	for in, want := range cases {
		if got := expandVars(in, lookup); got != want {
			t.Fatalf("expandVars(%q) = %q, want %q", in, got, want)
		}
	}
}
