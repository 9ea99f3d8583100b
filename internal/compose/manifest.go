package compose

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults used when the manifest does not say otherwise.
const (
	DefaultServiceName   = "n8n"
	DefaultImage         = "n8nio/n8n"
	DefaultContainerPort = 5678
)

// Manifest is the subset of a compose file the launcher needs.
type Manifest struct {
	ServiceName   string `json:"serviceName"`
	Image         string `json:"image"`
	ContainerName string `json:"containerName,omitempty"`
	HostPort      int    `json:"hostPort,omitempty"`
}

// ContainerFilter returns the value used with `docker ps --filter name=`.
func (m Manifest) ContainerFilter() string {
	if m.ContainerName != "" {
		return m.ContainerName
	}
	if m.ServiceName != "" {
		return m.ServiceName
	}
	return DefaultServiceName
}

// MatchesContainer reports whether a `docker ps` name belongs to the n8n
// service. An explicit container_name must match exactly; otherwise compose
// names of the form <project>-<service>-<n> or <project>_<service>_<n> count.
func (m Manifest) MatchesContainer(name string) bool {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if m.ContainerName != "" {
		return name == m.ContainerName
	}
	service := m.ServiceName
	if service == "" {
		service = DefaultServiceName
	}
	if name == service {
		return true
	}
	for _, sep := range []string{"-", "_"} {
		rest, index, ok := cutLast(name, sep)
		if !ok || !isDigits(index) {
			continue
		}
		if rest == service || strings.HasSuffix(rest, sep+service) {
			return true
		}
	}
	return false
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DefaultManifest describes the stack when no manifest can be read.
func DefaultManifest() Manifest {
	return Manifest{
		ServiceName: DefaultServiceName,
		Image:       DefaultImage,
	}
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image         string      `yaml:"image"`
	ContainerName string      `yaml:"container_name"`
	Ports         []yaml.Node `yaml:"ports"`
}

type longPort struct {
	Target    int    `yaml:"target"`
	Published string `yaml:"published"`
}

// LoadManifest reads and parses the manifest at path.
func LoadManifest(path string, lookup func(string) (string, bool)) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	return ParseManifest(data, lookup)
}

// ParseManifest extracts the n8n service from compose YAML. The service whose
// image mentions n8n wins; otherwise a service named n8n is used. Variable
// references like ${N8N_PORT:-5678} are expanded with lookup.
func ParseManifest(data []byte, lookup func(string) (string, bool)) (Manifest, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var file composeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Manifest{}, fmt.Errorf("parse compose file: %w", err)
	}
	if len(file.Services) == 0 {
		return Manifest{}, fmt.Errorf("compose file declares no services")
	}

	name, svc, ok := pickService(file.Services, lookup)
	if !ok {
		return Manifest{}, fmt.Errorf("compose file has no n8n service")
	}

	manifest := Manifest{
		ServiceName:   name,
		Image:         expandVars(svc.Image, lookup),
		ContainerName: expandVars(svc.ContainerName, lookup),
	}
	if manifest.Image == "" {
		manifest.Image = DefaultImage
	}

	for i := range svc.Ports {
		host, target, ok := parsePort(&svc.Ports[i], lookup)
		if !ok {
			continue
		}
		if target == DefaultContainerPort || manifest.HostPort == 0 {
			manifest.HostPort = host
		}
		if target == DefaultContainerPort {
			break
		}
	}

	return manifest, nil
}

// pickService selects the n8n service deterministically.
func pickService(services map[string]composeService, lookup func(string) (string, bool)) (string, composeService, bool) {
	best := ""
	for name, svc := range services {
		if !strings.Contains(strings.ToLower(expandVars(svc.Image, lookup)), "n8n") {
			continue
		}
		if best == "" || name == DefaultServiceName || (best != DefaultServiceName && name < best) {
			best = name
		}
	}
	if best != "" {
		return best, services[best], true
	}
	if svc, ok := services[DefaultServiceName]; ok {
		return DefaultServiceName, svc, true
	}
	return "", composeService{}, false
}

// parsePort reads short ("8080:5678", "127.0.0.1:8080:5678/tcp") or long
// syntax port entries and returns the host and container ports.
func parsePort(node *yaml.Node, lookup func(string) (string, bool)) (int, int, bool) {
	switch node.Kind {
	case yaml.ScalarNode:
		return parseShortPort(expandVars(node.Value, lookup))
	case yaml.MappingNode:
		var long longPort
		if err := node.Decode(&long); err != nil {
			return 0, 0, false
		}
		host, err := strconv.Atoi(strings.TrimSpace(expandVars(long.Published, lookup)))
		if err != nil || host <= 0 {
			return 0, 0, false
		}
		return host, long.Target, true
	default:
		return 0, 0, false
	}
}

func parseShortPort(raw string) (int, int, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}

	host, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || host <= 0 {
		return 0, 0, false
	}
	target, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, 0, false
	}
	return host, target, true
}

// expandVars resolves ${VAR}, ${VAR:-default} and ${VAR-default}.
func expandVars(value string, lookup func(string) (string, bool)) string {
	if !strings.Contains(value, "$") {
		return value
	}
	return os.Expand(value, func(expr string) string {
		name, fallback, hasDefault := expr, "", false
		emptyCounts := false
		if i := strings.Index(expr, ":-"); i >= 0 {
			name, fallback, hasDefault, emptyCounts = expr[:i], expr[i+2:], true, true
		} else if i := strings.Index(expr, "-"); i >= 0 {
			name, fallback, hasDefault = expr[:i], expr[i+1:], true
		}

		v, ok := lookup(name)
		if ok && !(emptyCounts && v == "") {
			return v
		}
		if hasDefault {
			return fallback
		}
		return ""
	})
}
