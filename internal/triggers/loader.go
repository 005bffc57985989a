package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leefowlercu/flapboard/internal/events"
)

// reloadDebounce absorbs editor write bursts before reloading.
const reloadDebounce = 500 * time.Millisecond

// Loader owns the trigger config file: it loads validated snapshots,
// watches the file for changes, and swaps the active snapshot atomically.
// A failed reload keeps the previous snapshot.
type Loader struct {
	path string
	bus  *events.EventBus
	log  *slog.Logger

	snapshot atomic.Pointer[Config]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
}

// LoaderOption configures the Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = logger
	}
}

// WithLoaderBus publishes reload outcomes on the event bus.
func WithLoaderBus(bus *events.EventBus) LoaderOption {
	return func(l *Loader) {
		l.bus = bus
	}
}

// NewLoader creates a loader and performs the initial load. The initial
// load must succeed; the daemon refuses to start with a broken trigger
// config.
func NewLoader(path string, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{
		path: path,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	l.snapshot.Store(cfg)
	return l, nil
}

// Snapshot returns the active configuration snapshot.
func (l *Loader) Snapshot() *Config {
	return l.snapshot.Load()
}

// StartWatching observes the config file for changes. Change events are
// debounced; on fire the file is reloaded and the snapshot swapped, or the
// old snapshot retained on failure.
func (l *Loader) StartWatching(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher; %w", err)
	}

	// Watch the directory: editors often replace the file, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory; %w", err)
	}

	l.watcher = watcher
	l.done = make(chan struct{})
	go l.watch(ctx, watcher, l.done)

	l.log.Info("watching trigger config", "path", l.path)
	return nil
}

// StopWatching tears down the watcher.
func (l *Loader) StopWatching() {
	l.mu.Lock()
	watcher, done := l.watcher, l.done
	l.watcher, l.done = nil, nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	if watcher == nil {
		return
	}
	watcher.Close()
	<-done
}

func (l *Loader) watch(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	base := filepath.Base(l.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			l.scheduleReload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.log.Warn("config watcher error", "error", err)
		}
	}
}

// scheduleReload resets the debounce timer.
func (l *Loader) scheduleReload(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(reloadDebounce, func() {
		l.reload(ctx)
	})
}

// reload re-reads the file and swaps the snapshot on success.
func (l *Loader) reload(ctx context.Context) {
	cfg, err := Load(l.path)
	if err != nil {
		l.log.Error("trigger config reload failed, keeping previous snapshot", "error", err)
		l.publish(ctx, events.TriggersReloadFailed, err.Error())
		return
	}

	l.snapshot.Store(cfg)
	l.log.Info("trigger config reloaded", "triggers", len(cfg.Triggers))
	l.publish(ctx, events.TriggersReloaded, "")
}

func (l *Loader) publish(ctx context.Context, eventType events.EventType, detail string) {
	if l.bus == nil {
		return
	}
	if err := l.bus.Publish(ctx, events.NewEvent(eventType, detail)); err != nil {
		l.log.Debug("reload event not published", "error", err)
	}
}
