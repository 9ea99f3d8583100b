package bootstrap

import (
	goruntime "runtime"

	"n8n-launcher/internal/domain"
)

type dockerInstallEntry struct {
	OS          string
	Arch        string
	Name        string
	URL         string
	Description string
}

var dockerInstallCatalog = []dockerInstallEntry{
	{
		OS:          "darwin",
		Arch:        "arm64",
		Name:        "Docker Desktop for Mac (Apple silicon)",
		URL:         "https://desktop.docker.com/mac/main/arm64/Docker.dmg",
		Description: "Open the .dmg and drag Docker into Applications, then start it once.",
	},
	{
		OS:          "darwin",
		Arch:        "amd64",
		Name:        "Docker Desktop for Mac (Intel)",
		URL:         "https://desktop.docker.com/mac/main/amd64/Docker.dmg",
		Description: "Open the .dmg and drag Docker into Applications, then start it once.",
	},
	{
		OS:          "windows",
		Name:        "Docker Desktop for Windows",
		URL:         "https://desktop.docker.com/win/main/amd64/Docker%20Desktop%20Installer.exe",
		Description: "Run the installer with WSL 2 enabled and restart when asked.",
	},
	{
		OS:          "linux",
		Name:        "Docker Desktop for Linux",
		URL:         "https://docs.docker.com/desktop/install/linux-install/",
		Description: "Follow the guide for your distribution, or install docker and the compose plugin from its packages.",
	},
}

// GetDockerInstallOptions returns Docker Desktop download links with the
// entry for this machine flagged.
func (a *App) GetDockerInstallOptions() []domain.InstallOption {
	return installOptionsFor(goruntime.GOOS, goruntime.GOARCH)
}

func installOptionsFor(goos, goarch string) []domain.InstallOption {
	options := make([]domain.InstallOption, 0, len(dockerInstallCatalog))
	for _, entry := range dockerInstallCatalog {
		current := entry.OS == goos && (entry.Arch == "" || entry.Arch == goarch)
		options = append(options, domain.InstallOption{
			OS:          entry.OS,
			Name:        entry.Name,
			URL:         entry.URL,
			Description: entry.Description,
			Current:     current,
		})
	}
	return options
}
