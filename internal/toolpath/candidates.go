package toolpath

import (
	"os"
	"path/filepath"
	goruntime "runtime"
)

// Tool names understood by the resolver.
const (
	Docker        = "docker"
	DockerCompose = "docker-compose"
)

// DefaultCandidates returns the fixed probe order for a tool on goos. The
// bare name comes first so a PATH install wins over well-known locations.
func DefaultCandidates(goos, tool string) []string {
	switch goos {
	case "windows":
		exe := tool + ".exe"
		programFiles := os.Getenv("ProgramFiles")
		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		candidates := []string{
			exe,
			filepath.Join(programFiles, "Docker", "Docker", "resources", "bin", exe),
			filepath.Join(programFiles, "Docker", "Docker", "resources", exe),
		}
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			candidates = append(candidates, filepath.Join(localAppData, "Docker", "resources", "bin", exe))
		}
		return candidates
	case "darwin":
		return []string{
			tool,
			"/usr/local/bin/" + tool,
			"/opt/homebrew/bin/" + tool,
			"/Applications/Docker.app/Contents/Resources/bin/" + tool,
		}
	default:
		return []string{
			tool,
			"/usr/bin/" + tool,
			"/usr/local/bin/" + tool,
			"/snap/bin/" + tool,
		}
	}
}

// currentCandidates returns DefaultCandidates for the running OS.
func currentCandidates(tool string) []string {
	return DefaultCandidates(goruntime.GOOS, tool)
}
