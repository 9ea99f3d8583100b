// Package compose finds the n8n compose manifest and drives docker-compose
// against it.
package compose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
)

// ErrManifestNotFound is returned when no candidate directory holds a manifest.
var ErrManifestNotFound = errors.New("compose file not found")

// ManifestNames lists accepted manifest file names in preference order.
var ManifestNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// Location is a discovered manifest.
type Location struct {
	Dir  string `json:"dir"`
	File string `json:"file"`
}

// Locator searches a fixed, ordered list of directories for a manifest.
type Locator struct {
	explicitDir string
	appDataDir  string
	goos        string
	getwd       func() (string, error)
	executable  func() (string, error)
	stat        func(string) (os.FileInfo, error)
}

// NewLocator builds a locator using real OS dependencies. explicitDir comes
// from settings or N8N_COMPOSE_DIR and is searched first when set.
func NewLocator(explicitDir, appDataDir string) *Locator {
	return &Locator{
		explicitDir: strings.TrimSpace(explicitDir),
		appDataDir:  appDataDir,
		goos:        goruntime.GOOS,
		getwd:       os.Getwd,
		executable:  os.Executable,
		stat:        os.Stat,
	}
}

// NewLocatorForTests creates a locator with injectable dependencies.
func NewLocatorForTests(
	explicitDir string,
	appDataDir string,
	goos string,
	getwd func() (string, error),
	executable func() (string, error),
	stat func(string) (os.FileInfo, error),
) *Locator {
	return &Locator{
		explicitDir: strings.TrimSpace(explicitDir),
		appDataDir:  appDataDir,
		goos:        goos,
		getwd:       getwd,
		executable:  executable,
		stat:        stat,
	}
}

// SearchDirs returns candidate directories in search order:
// explicit dir, working dir, its parent, executable dir, bundled resources,
// per-user data dir. Duplicates are dropped, keeping the first position.
func (l *Locator) SearchDirs() []string {
	dirs := make([]string, 0, 6)
	if l.explicitDir != "" {
		dirs = append(dirs, l.explicitDir)
	}

	if wd, err := l.getwd(); err == nil && wd != "" {
		dirs = append(dirs, wd, filepath.Dir(wd))
	}

	if exe, err := l.executable(); err == nil && exe != "" {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		exeDir := filepath.Dir(exe)
		dirs = append(dirs, exeDir, resourcesDir(l.goos, exeDir))
	}

	if l.appDataDir != "" {
		dirs = append(dirs, l.appDataDir)
	}

	seen := make(map[string]struct{}, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		clean := filepath.Clean(dir)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// Locate returns the first directory that contains a manifest.
func (l *Locator) Locate() (Location, error) {
	dirs := l.SearchDirs()
	for _, dir := range dirs {
		for _, name := range ManifestNames {
			path := filepath.Join(dir, name)
			info, err := l.stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			return Location{Dir: dir, File: path}, nil
		}
	}

	return Location{}, fmt.Errorf("%w (searched: %s)", ErrManifestNotFound, strings.Join(dirs, ", "))
}

// resourcesDir returns where installers place bundled files next to the binary.
func resourcesDir(goos, exeDir string) string {
	if goos == "darwin" {
		return filepath.Join(exeDir, "..", "Resources")
	}
	return filepath.Join(exeDir, "resources")
}
