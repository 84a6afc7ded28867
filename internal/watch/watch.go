// Package watch rebuilds the corpus when watched documents change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/service"
)

const DefaultDebounce = 500 * time.Millisecond

type Config struct {
	// Paths are files or directories. Directories are watched recursively.
	Paths    []string
	Debounce time.Duration
	// Rebuild produces a fresh corpus from the current state on disk.
	Rebuild func(ctx context.Context) (*service.Corpus, error)
	// OnRebuild is called with every successfully built corpus.
	OnRebuild func(*service.Corpus)
	OnError   func(error)
	// Filter decides whether a changed file under a watched directory
	// matters. Nil accepts every non-hidden file.
	Filter func(path string) bool
	Log    *logger.Logger
}

// Watcher owns an fsnotify watcher and the latest corpus. Each rebuild
// publishes a new corpus; handles obtained earlier stay usable.
type Watcher struct {
	cfg     Config
	fs      *fsnotify.Watcher
	files   map[string]struct{}
	dirs    map[string]struct{}
	current atomic.Pointer[service.Corpus]
}

func New(cfg Config) (*Watcher, error) {
	if cfg.Rebuild == nil {
		return nil, errors.New("watch: Rebuild is required")
	}
	if len(cfg.Paths) == 0 {
		return nil, errors.New("watch: no paths given")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.Filter == nil {
		cfg.Filter = func(p string) bool { return !strings.HasPrefix(filepath.Base(p), ".") }
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{cfg: cfg, fs: fw, files: map[string]struct{}{}, dirs: map[string]struct{}{}}
	for _, p := range cfg.Paths {
		if err := w.add(filepath.Clean(p)); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// add watches a directory tree, or a single file through its parent so that
// editors replacing the file by rename are still noticed.
func (w *Watcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	if !info.IsDir() {
		w.files[path] = struct{}{}
		return w.fs.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.dirs[p] = struct{}{}
		return w.fs.Add(p)
	})
}

// Current returns the most recently built corpus, or nil before the first
// successful rebuild.
func (w *Watcher) Current() *service.Corpus { return w.current.Load() }

// Rebuild builds and publishes a new corpus immediately.
func (w *Watcher) Rebuild(ctx context.Context) error {
	start := time.Now()
	corpus, err := w.cfg.Rebuild(ctx)
	if err != nil {
		w.cfg.Log.Warn("rebuild failed, keeping previous index", logger.Error(err))
		if w.cfg.OnError != nil {
			w.cfg.OnError(err)
		}
		return err
	}
	w.current.Store(corpus)
	w.cfg.Log.Info("index rebuilt", logger.Count(corpus.Index.Len()), logger.Duration(time.Since(start)))
	if w.cfg.OnRebuild != nil {
		w.cfg.OnRebuild(corpus)
	}
	return nil
}

// Run processes file events until ctx is done. Bursts of events inside the
// debounce window cause a single rebuild.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(ev) {
				continue
			}
			w.cfg.Log.Debug("change detected", logger.F("path", ev.Name), logger.F("op", ev.Op.String()))
			if ev.Has(fsnotify.Create) {
				w.watchNewDir(ev.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			_ = w.Rebuild(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.cfg.Log.Warn("watcher error", logger.Error(err))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if _, ok := w.files[name]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(name)]; ok {
		return w.cfg.Filter(name)
	}
	return false
}

func (w *Watcher) watchNewDir(path string) {
	if _, ok := w.dirs[filepath.Dir(path)]; !ok {
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if err := w.add(path); err != nil {
			w.cfg.Log.Warn("failed to watch new directory", logger.F("path", path), logger.Error(err))
		}
	}
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
