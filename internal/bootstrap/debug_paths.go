package bootstrap

import (
	"context"
	"os"
	"path/filepath"

	"n8n-launcher/internal/compose"
	"n8n-launcher/internal/domain"
	"n8n-launcher/internal/engine"
	"n8n-launcher/internal/toolpath"
)

type pathTools interface {
	Docker(ctx context.Context) (toolpath.Probe, error)
	Compose(ctx context.Context) (toolpath.Tool, error)
}

type pathLocator interface {
	SearchDirs() []string
	Locate() (compose.Location, error)
}

type engineProber interface {
	Probe(ctx context.Context) engine.Status
}

// pathInspector collects what every resolver found into one report.
type pathInspector struct {
	tools      pathTools
	locator    pathLocator
	engine     engineProber
	getwd      func() (string, error)
	executable func() (string, error)
}

// Report never fails; resolution problems are listed in Errors.
func (p *pathInspector) Report(ctx context.Context) domain.PathReport {
	getwd := p.getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	executable := p.executable
	if executable == nil {
		executable = os.Executable
	}

	report := domain.PathReport{}
	if wd, err := getwd(); err == nil {
		report.WorkingDir = wd
	} else {
		report.Errors = append(report.Errors, "working directory: "+err.Error())
	}
	if exe, err := executable(); err == nil {
		report.ExecutableDir = filepath.Dir(exe)
	} else {
		report.Errors = append(report.Errors, "executable: "+err.Error())
	}

	if probe, err := p.tools.Docker(ctx); err == nil {
		report.DockerPath = probe.Path
	} else {
		report.Errors = append(report.Errors, "docker: "+err.Error())
	}
	if tool, err := p.tools.Compose(ctx); err == nil {
		report.ComposeCommand = tool.String()
	} else {
		report.Errors = append(report.Errors, "docker-compose: "+err.Error())
	}

	report.SearchedDirs = p.locator.SearchDirs()
	if loc, err := p.locator.Locate(); err == nil {
		report.ComposeFile = loc.File
	} else {
		report.Errors = append(report.Errors, "compose file: "+err.Error())
	}

	if p.engine != nil {
		status := p.engine.Probe(ctx)
		if status.Reachable {
			report.EngineHost = status.Host
		} else {
			report.Errors = append(report.Errors, "docker engine: "+status.Error)
		}
	}

	return report
}
