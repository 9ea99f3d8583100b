package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces editor save bursts into one callback.
const DefaultDebounce = 300 * time.Millisecond

// ErrNothingToWatch is returned when no file's directory could be watched.
var ErrNothingToWatch = errors.New("no watchable files")

// Watcher reports changes to a fixed set of files. The parent directories
// are watched so that atomic replace-by-rename saves are seen.
type Watcher struct {
	files    []string
	debounce time.Duration
	onChange func(path string)
	logger   *slog.Logger
}

// New builds a watcher; onChange runs on its own goroutine after each
// debounced burst of events.
func New(files []string, debounce time.Duration, onChange func(path string), logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		files:    files,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Start registers the watches and returns a stop function that ends the
// event loop and waits for it.
func (w *Watcher) Start(ctx context.Context) (func(), error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	targets := make(map[string]bool, len(w.files))
	dirs := make(map[string]bool)
	for _, file := range w.files {
		if file == "" {
			continue
		}
		clean := filepath.Clean(file)
		dir := filepath.Dir(clean)
		if !dirs[dir] {
			if err := fw.Add(dir); err != nil {
				w.logger.Debug("skip watch", "dir", dir, "err", err)
				continue
			}
			dirs[dir] = true
		}
		targets[clean] = true
	}
	if len(dirs) == 0 {
		fw.Close()
		return nil, ErrNothingToWatch
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer fw.Close()
		w.loop(ctx, fw, targets)
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, targets map[string]bool) {
	var d debouncer
	trigger := func(path string) {
		if d.arm(path) {
			go w.run(ctx, &d)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if !targets[path] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				trigger(path)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "err", err)
		}
	}
}

// debouncer serialises callbacks. An event seen while a callback runs marks
// the state dirty so exactly one more callback follows it.
type debouncer struct {
	mu      sync.Mutex
	running bool
	dirty   bool
	path    string
}

// arm records path and reports whether the caller must start a run.
func (d *debouncer) arm(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
	if d.running {
		d.dirty = true
		return false
	}
	d.running = true
	return true
}

// take clears the dirty mark and returns the latest path.
func (d *debouncer) take() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = false
	return d.path
}

// settle ends the run unless an event arrived during the callback.
func (d *debouncer) settle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty {
		return false
	}
	d.running = false
	return true
}

func (w *Watcher) run(ctx context.Context, d *debouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.debounce):
		}
		w.onChange(d.take())
		if d.settle() {
			return
		}
	}
}
