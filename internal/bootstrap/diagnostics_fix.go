package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"n8n-launcher/internal/command"
	"n8n-launcher/internal/compose"
	"n8n-launcher/internal/config"
	"n8n-launcher/internal/diagnostics"
	"n8n-launcher/internal/domain"
)

const installCommandTimeout = 45 * time.Minute

type installOption struct {
	manager  string
	commands [][]string
}

// installer runs package-manager commands for tool and daemon fixes.
type installer struct {
	runner   command.Runner
	lookPath func(string) (string, error)
	goos     string
}

func newInstaller() *installer {
	return &installer{
		runner:   command.NewExecRunner(),
		lookPath: exec.LookPath,
		goos:     goruntime.GOOS,
	}
}

// InstallOrFixDiagnostic applies an OS-specific remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	stored, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings := config.Normalize(stored)

	inst := a.installer
	if inst == nil {
		inst = newInstaller()
	}
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.ItemDocker:
		fixErr = inst.installDocker(ctx)
	case diagnostics.ItemDockerCompose:
		fixErr = inst.installCompose(ctx)
	case diagnostics.ItemDaemon, diagnostics.ItemEngine:
		fixErr = inst.startDaemon(ctx)
	case diagnostics.ItemComposeFile:
		settings, settingsChanged, fixErr = fixComposeFile(settings, a.appDataDir())
	case diagnostics.ItemPort:
		settings, settingsChanged = fixPort(settings)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if fixErr != nil {
		a.log().Warn("diagnostic fix failed", "item", id, "err", fixErr)
	} else {
		a.log().Info("diagnostic fix applied", "item", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			a.applySettings(a.withEnv(settings))
			return a.GetDiagnostics(), fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	a.applySettings(a.withEnv(settings))
	if settingsChanged {
		a.restartWatcher()
	}
	return a.GetDiagnostics(), fixErr
}

func (a *App) appDataDir() string {
	if a.dataDir != "" {
		return a.dataDir
	}
	return config.AppDataDir()
}

// fixComposeFile writes the bundled manifest into dataDir and points settings at it.
func fixComposeFile(settings domain.Settings, dataDir string) (domain.Settings, bool, error) {
	if _, err := compose.WriteDefault(dataDir); err != nil {
		return settings, false, fmt.Errorf("write default compose file: %w", err)
	}
	if settings.ComposeDir == dataDir {
		return settings, false, nil
	}
	settings.ComposeDir = dataDir
	return settings, true, nil
}

func fixPort(settings domain.Settings) (domain.Settings, bool) {
	if settings.N8NPort == config.DefaultN8NPort {
		return settings, false
	}
	settings.N8NPort = config.DefaultN8NPort
	return settings, true
}

// ensureToolDirsOnPATH appends well-known install locations that a GUI
// launch on macOS leaves out of PATH, so package managers are found.
func ensureToolDirsOnPATH(goos string) error {
	if goos != "darwin" {
		return nil
	}

	current := os.Getenv("PATH")
	entries := filepath.SplitList(current)
	updated := entries
	for _, dir := range []string{"/usr/local/bin", "/opt/homebrew/bin"} {
		if !containsPath(updated, dir) {
			updated = append(updated, dir)
		}
	}
	if len(updated) == len(entries) {
		return nil
	}
	return os.Setenv("PATH", strings.Join(updated, string(os.PathListSeparator)))
}

func containsPath(entries []string, dir string) bool {
	for _, entry := range entries {
		if filepath.Clean(entry) == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func (i *installer) installDocker(ctx context.Context) error {
	var options []installOption

	switch i.goos {
	case "windows":
		options = []installOption{
			{
				manager: "winget",
				commands: [][]string{
					{"winget", "install", "--id", "Docker.DockerDesktop", "--exact", "--accept-source-agreements", "--accept-package-agreements"},
				},
			},
			{
				manager: "choco",
				commands: [][]string{
					{"choco", "install", "docker-desktop", "-y"},
				},
			},
		}
	case "darwin":
		options = []installOption{
			{
				manager: "brew",
				commands: [][]string{
					{"brew", "install", "--cask", "docker"},
				},
			},
		}
	default:
		options = []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "update"},
					{"apt-get", "install", "-y", "docker.io"},
				},
			},
			{
				manager: "dnf",
				commands: [][]string{
					{"dnf", "install", "-y", "moby-engine"},
				},
			},
			{
				manager: "pacman",
				commands: [][]string{
					{"pacman", "-Sy", "--noconfirm", "docker"},
				},
			},
			{
				manager: "zypper",
				commands: [][]string{
					{"zypper", "install", "-y", "docker"},
				},
			},
		}
	}

	if err := i.runFirstSuccessfulInstall(ctx, options); err != nil {
		return fmt.Errorf("install docker: %w", err)
	}
	if err := i.requireToolsOnPath("docker"); err != nil {
		return fmt.Errorf("verify docker on PATH: %w", err)
	}
	return nil
}

func (i *installer) installCompose(ctx context.Context) error {
	var options []installOption

	switch i.goos {
	case "windows":
		options = []installOption{
			{
				manager: "winget",
				commands: [][]string{
					{"winget", "install", "--id", "Docker.DockerCompose", "--exact", "--accept-source-agreements", "--accept-package-agreements"},
				},
			},
			{
				manager: "choco",
				commands: [][]string{
					{"choco", "install", "docker-compose", "-y"},
				},
			},
		}
	case "darwin":
		options = []installOption{
			{
				manager: "brew",
				commands: [][]string{
					{"brew", "install", "docker-compose"},
				},
			},
		}
	default:
		options = []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "update"},
					{"apt-get", "install", "-y", "docker-compose-plugin"},
				},
			},
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "install", "-y", "docker-compose"},
				},
			},
			{
				manager: "dnf",
				commands: [][]string{
					{"dnf", "install", "-y", "docker-compose"},
				},
			},
			{
				manager: "pacman",
				commands: [][]string{
					{"pacman", "-Sy", "--noconfirm", "docker-compose"},
				},
			},
			{
				manager: "zypper",
				commands: [][]string{
					{"zypper", "install", "-y", "docker-compose"},
				},
			},
		}
	}

	if err := i.runFirstSuccessfulInstall(ctx, options); err != nil {
		return fmt.Errorf("install docker-compose: %w", err)
	}
	return nil
}

// startDaemon launches Docker Desktop or the docker service.
func (i *installer) startDaemon(ctx context.Context) error {
	var err error
	switch i.goos {
	case "darwin":
		err = i.runCommand(ctx, "open", "-a", "Docker")
	case "windows":
		desktop := filepath.Join(programFiles(), "Docker", "Docker", "Docker Desktop.exe")
		err = i.runCommand(ctx, "cmd", "/c", "start", "", desktop)
	default:
		if !i.commandAvailable("systemctl") {
			return fmt.Errorf("start docker: systemctl is not available; start the docker service manually")
		}
		err = i.runCommandWithPossibleElevation(ctx, []string{"systemctl", "start", "docker"})
	}
	if err != nil {
		return fmt.Errorf("start docker: %w", err)
	}
	return nil
}

func programFiles() string {
	if dir := os.Getenv("ProgramFiles"); dir != "" {
		return dir
	}
	return `C:\Program Files`
}

func (i *installer) runFirstSuccessfulInstall(ctx context.Context, options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", i.goos)
	}

	errorsByManager := make([]string, 0, len(options))
	atLeastOneManager := false

	for _, option := range options {
		if !i.commandAvailable(option.manager) {
			continue
		}
		atLeastOneManager = true
		if err := i.runInstallCommands(ctx, option.commands); err == nil {
			return nil
		} else {
			errorsByManager = append(errorsByManager, fmt.Sprintf("%s: %v", option.manager, err))
		}
	}

	if !atLeastOneManager {
		return fmt.Errorf("no supported package manager found for %s", i.goos)
	}
	return errors.New(strings.Join(errorsByManager, " | "))
}

func (i *installer) runInstallCommands(ctx context.Context, commands [][]string) error {
	for _, cmd := range commands {
		if err := i.runCommandWithPossibleElevation(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (i *installer) runCommandWithPossibleElevation(ctx context.Context, cmd []string) error {
	if len(cmd) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := [][]string{cmd}
	if i.goos == "linux" && requiresElevation(cmd[0]) {
		if i.commandAvailable("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, cmd...))
		}
		if i.commandAvailable("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, cmd...))
		}
	}

	attemptErrors := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := i.runCommand(ctx, candidate[0], candidate[1:]...); err == nil {
			return nil
		} else {
			attemptErrors = append(attemptErrors, err.Error())
		}
	}

	return errors.New(strings.Join(attemptErrors, " | "))
}

func (i *installer) runCommand(ctx context.Context, name string, args ...string) error {
	res, err := i.runner.Run(ctx, command.Request{
		Name:    name,
		Args:    args,
		Timeout: installCommandTimeout,
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, command.ErrTimeout) {
		return fmt.Errorf("%s timed out after %s", command.Format(name, args), installCommandTimeout)
	}

	output := command.Excerpt(strings.TrimSpace(res.Stderr+"\n"+res.Stdout), 500)
	if output == "" {
		return fmt.Errorf("%s failed: %w", command.Format(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", command.Format(name, args), err, output)
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper", "systemctl":
		return true
	default:
		return false
	}
}

func (i *installer) commandAvailable(name string) bool {
	_, err := i.lookPath(name)
	return err == nil
}

func (i *installer) requireToolsOnPath(names ...string) error {
	missing := make([]string, 0, len(names))
	for _, name := range names {
		if !i.commandAvailable(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
