package compose

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed default-compose.yml
var defaultManifest []byte

// DefaultManifestYAML returns the bundled single-service n8n manifest.
func DefaultManifestYAML() []byte {
	return append([]byte(nil), defaultManifest...)
}

// WriteDefault writes the bundled manifest into dir unless a manifest is
// already present there, and returns the manifest path.
func WriteDefault(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create compose directory: %w", err)
	}

	for _, name := range ManifestNames {
		existing := filepath.Join(dir, name)
		if _, err := os.Stat(existing); err == nil {
			return existing, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("check compose file: %w", err)
		}
	}

	path := filepath.Join(dir, ManifestNames[0])
	if err := os.WriteFile(path, defaultManifest, 0o644); err != nil {
		return "", fmt.Errorf("write compose file: %w", err)
	}
	return path, nil
}
