package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/config"
	"github.com/hpungsan/sideclip/internal/ops"
)

// DefaultDebounce waits for a file to stop changing before it is read.
const DefaultDebounce = 300 * time.Millisecond

// DirWatcher emits an image event for every image file written into a directory.
type DirWatcher struct {
	dir      string
	cfg      *config.Config
	debounce time.Duration
	log      *logrus.Logger
	watcher  *fsnotify.Watcher
}

// WatcherOption configures a DirWatcher.
type WatcherOption func(*DirWatcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *DirWatcher) { w.debounce = d }
}

// NewDirWatcher starts watching dir. Files are read through ops.ReadImageFile, so dir must be
// the inbox or listed in allowed_paths.
func NewDirWatcher(dir string, cfg *config.Config, logger *logrus.Logger, opts ...WatcherOption) (*DirWatcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid watch directory: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", abs, err)
	}

	w := &DirWatcher{
		dir:      abs,
		cfg:      cfg,
		debounce: DefaultDebounce,
		log:      logger,
		watcher:  fw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *DirWatcher) Dir() string {
	return w.dir
}

// Run forwards debounced image files as events until ctx is done. The watcher is closed on return.
func (w *DirWatcher) Run(ctx context.Context, out chan<- clip.Event) error {
	defer w.watcher.Close()

	ready := make(chan string, 16)
	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	w.log.WithFields(logrus.Fields{"dir": w.dir}).Info("watching for images")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !ops.IsImageFile(ev.Name) {
				continue
			}

			// Restart the timer on every write so half-written files are not read.
			path := ev.Name
			mu.Lock()
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				delete(timers, path)
				mu.Unlock()
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
			mu.Unlock()

		case path := <-ready:
			data, err := ops.ReadImageFile(path, w.cfg)
			if err != nil {
				w.log.WithFields(logrus.Fields{"path": path, "error": err}).Warn("image file skipped")
				continue
			}
			if !send(ctx, out, clip.ImageEvent(data, "", ops.FileURL(path))) {
				return nil
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithFields(logrus.Fields{"dir": w.dir, "error": err}).Warn("file watcher error")
		}
	}
}
