package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config controls which paths are watched.
type Config struct {
	// Paths are files or directories; directories are watched recursively.
	Paths []string

	// Debounce is the quiet period after the last change before a rerun.
	Debounce time.Duration

	// Extensions of files whose changes trigger a rerun inside watched
	// directories. Explicitly listed files always trigger.
	Extensions []string
}

// DefaultConfig watches Go sources, go.mod and scope catalogs.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:      paths,
		Debounce:   300 * time.Millisecond,
		Extensions: []string{".go", ".mod", ".yaml", ".yml", ".toml"},
	}
}

// Watcher reruns a callback when watched files change.
type Watcher struct {
	cfg     Config
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	files   map[string]bool // explicitly listed files
	dirs    map[string]bool // directories watched recursively
}

// New creates a watcher and registers every configured path.
func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		cfg:     cfg,
		logger:  logger.With("component", "watch"),
		watcher: fw,
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
	}
	for _, p := range cfg.Paths {
		if p == "" {
			continue
		}
		if err := w.addPath(p); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watching %s: %w", p, err)
		}
	}
	return w, nil
}

// addPath watches a directory tree, or the parent directory of a file so
// that editors replacing the file by rename are still seen.
func (w *Watcher) addPath(p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.watcher.Add(filepath.Dir(abs))
	}
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != abs && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules") {
			return filepath.SkipDir
		}
		w.logger.Debug("watching directory", "path", path)
		w.dirs[path] = true
		return w.watcher.Add(path)
	})
}

// relevant reports whether ev should schedule a rerun. Inside a directory
// watched only for a listed file, siblings of that file are ignored.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	if w.files[abs] {
		return true
	}
	if !w.dirs[filepath.Dir(abs)] {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.cfg.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// inTree reports whether name lies directly in a recursively watched
// directory.
func (w *Watcher) inTree(name string) bool {
	abs, err := filepath.Abs(name)
	return err == nil && w.dirs[filepath.Dir(abs)]
}

// Run blocks until ctx is done, calling onChange once per burst of
// relevant events. Errors from onChange are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer w.watcher.Close()

	// Stopped timers never deliver stale values since Go 1.23, so Reset
	// needs no drain.
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()

	w.logger.Info("watching for changes", "paths", w.cfg.Paths, "debounce_ms", w.cfg.Debounce.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if ev.Has(fsnotify.Create) && w.inTree(ev.Name) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addPath(ev.Name); err != nil {
						w.logger.Warn("watching new directory failed", "path", ev.Name, "error", err)
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.cfg.Debounce)

		case <-timer.C:
			w.logger.Info("change detected, rerunning")
			if err := onChange(ctx); err != nil {
				w.logger.Error("rerun failed", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}
