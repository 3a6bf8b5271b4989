package forecast

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultSettle = 250 * time.Millisecond

// Watcher delivers forecast files dropped into a directory. Each file is
// handled once per modification, after writes have settled.
type Watcher struct {
	dir     string
	handler Handler
	settle  time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]time.Time
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, handler Handler, log zerolog.Logger) *Watcher {
	return &Watcher{
		dir:     dir,
		handler: handler,
		settle:  defaultSettle,
		log:     log.With().Str("component", "forecast_watcher").Logger(),
		pending: make(map[string]*time.Timer),
		seen:    make(map[string]time.Time),
	}
}

// SetSettle changes the quiet period before a file is read
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Run processes files already present, then watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && isForecastFile(e.Name()) {
			w.process(ctx, filepath.Join(w.dir, e.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isForecastFile(evt.Name) {
				continue
			}
			w.schedule(ctx, evt.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.process(ctx, path)
		}
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	if last, ok := w.seen[path]; ok && !info.ModTime().After(last) {
		w.mu.Unlock()
		return
	}
	w.seen[path] = info.ModTime()
	w.mu.Unlock()

	forecasts, err := Load(path)
	if err != nil {
		w.log.Warn().Err(err).Str("file", path).Msg("rejected forecast file")
		return
	}
	w.log.Info().Str("file", filepath.Base(path)).Int("forecasts", len(forecasts)).Msg("forecast file received")
	if err := w.handler(ctx, forecasts); err != nil {
		w.log.Error().Err(err).Str("file", path).Msg("forecast handler failed")
	}
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func isForecastFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".json" || ext == ".csv"
}
