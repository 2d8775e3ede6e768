// Package watch triggers profile generation for RAW files dropped into a
// directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/aipp3/internal/logging"
)

// DefaultDebounce is the quiet period a file must observe before it is
// handed off, so partially copied files are not processed.
const DefaultDebounce = 2 * time.Second

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Config configures a Watcher.
type Config struct {
	Dir        string
	Extensions []string // lower-case, with dot
	Debounce   time.Duration
	Handler    Handler
	Logger     zerolog.Logger
}

// Watcher watches a single directory. Each file is handled at most once per
// Watcher lifetime.
type Watcher struct {
	dir      string
	exts     map[string]bool
	debounce time.Duration
	handle   Handler
	logger   zerolog.Logger

	fs *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	seen    map[string]bool
}

// New starts watching cfg.Dir. Events are queued from the moment New
// returns; call Run to process them.
func New(cfg Config) (*Watcher, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("watch: handler is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", cfg.Dir, err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Watcher{
		dir:      cfg.Dir,
		exts:     exts,
		debounce: debounce,
		handle:   cfg.Handler,
		logger:   logging.Component(cfg.Logger, "watch"),
		fs:       fsw,
		pending:  make(map[string]time.Time),
		seen:     make(map[string]bool),
	}, nil
}

// Run processes events until ctx is cancelled, then closes the watcher.
// Files are handled one at a time in the order they settle.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	w.logger.Info().Str("dir", w.dir).Msg("watching for RAW files")

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.queue(ev.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("watcher error")

		case <-ticker.C:
			for _, path := range w.ready(time.Now()) {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Info().Str("file", path).Msg("processing")
				if err := w.handle(ctx, path); err != nil {
					w.logger.Error().Err(err).Str("file", path).Msg("processing failed")
				}
			}
		}
	}
}

// queue records path as changed now, unless it is filtered or already handled.
func (w *Watcher) queue(path string) {
	if !w.exts[strings.ToLower(filepath.Ext(path))] {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[path] {
		return
	}
	w.pending[path] = time.Now()
}

// ready removes and returns the pending paths that have been quiet for the
// debounce period, marking them seen.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			out = append(out, path)
		}
	}
	for _, path := range out {
		delete(w.pending, path)
		w.seen[path] = true
	}
	return out
}
