package bootstrap

import (
	"slices"

	"n8n-launcher/internal/watch"
)

// EventDiagnostics carries a refreshed report after a watched file changed.
const EventDiagnostics = "diagnostics:updated"

type pathStore interface {
	Path() string
}

// watchedFiles lists the settings file and the active compose manifest.
func (a *App) watchedFiles() []string {
	var files []string
	if store, ok := a.Store.(pathStore); ok {
		files = append(files, store.Path())
	}
	if deps := a.deps(); deps.compose != nil {
		if loc, err := deps.compose.Locate(); err == nil {
			files = append(files, loc.File)
		}
	}
	return files
}

// restartWatcher replaces the file watcher. It does nothing before Startup.
func (a *App) restartWatcher() {
	a.mu.Lock()
	ctx := a.runtimeCtx
	stop := a.stopWatch
	a.stopWatch = nil
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	if ctx == nil {
		return
	}

	files := a.watchedFiles()
	w := watch.New(files, a.watchDebounce, a.onWatchedFileChange, a.log())
	stop, err := w.Start(ctx)
	if err != nil {
		a.log().Warn("watch config files", "files", files, "err", err)
		return
	}

	a.mu.Lock()
	a.stopWatch = stop
	a.watched = files
	a.mu.Unlock()
}

func (a *App) stopWatcher() {
	a.mu.Lock()
	stop := a.stopWatch
	a.stopWatch = nil
	a.watched = nil
	a.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// onWatchedFileChange reruns diagnostics and pushes the new report. When the
// change moved the compose manifest, the watcher follows it. The callback
// runs outside the watcher's event loop, so restarting here does not wait
// on itself.
func (a *App) onWatchedFileChange(path string) {
	a.log().Info("watched file changed", "path", path)
	report, err := a.RefreshDiagnostics()
	if err != nil {
		a.log().Warn("refresh diagnostics after change", "path", path, "err", err)
		return
	}

	a.mu.Lock()
	watched := a.watched
	a.mu.Unlock()
	if files := a.watchedFiles(); !slices.Equal(files, watched) {
		a.log().Info("watched files moved", "from", watched, "to", files)
		a.restartWatcher()
	}
	a.emitRuntime(EventDiagnostics, report)
}
