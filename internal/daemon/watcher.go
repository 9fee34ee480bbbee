package daemon

import (
	"fmt"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent reports that the watched config file changed.
type ChangeEvent struct {
	// Path is the absolute path of the config file.
	Path string
	// Removed is true when the file no longer exists.
	Removed bool
}

// ConfigWatcher watches a single config file for changes.
//
// Editors often replace a file instead of writing it in place, so the
// watcher follows the parent directory and filters on the file name.
// Bursts of events within the debounce interval collapse into one change.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration

	changes chan ChangeEvent
	errors  chan error
	done    chan struct{}
	wg      gosync.WaitGroup
	mu      gosync.Mutex
	running bool
	stopped bool
}

// NewConfigWatcher creates a watcher for path.
// The watcher must be started with Start() before it will emit events.
func NewConfigWatcher(path string, debounce time.Duration) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &ConfigWatcher{
		watcher:  watcher,
		path:     abs,
		debounce: debounce,
		changes:  make(chan ChangeEvent, 10),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (cw *ConfigWatcher) Path() string {
	return cw.path
}

// Start begins watching. The parent directory must exist.
func (cw *ConfigWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("watcher already running")
	}
	if cw.stopped {
		return fmt.Errorf("watcher already stopped")
	}

	dir := filepath.Dir(cw.path)
	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	cw.running = true
	cw.wg.Add(1)
	go cw.processEvents()

	return nil
}

// Stop stops watching and closes the Changes and Errors channels.
// It blocks until the event processing goroutine has exited.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return nil
	}
	wasRunning := cw.running
	cw.running = false
	cw.stopped = true
	cw.mu.Unlock()

	close(cw.done)

	err := cw.watcher.Close()
	if wasRunning {
		cw.wg.Wait()
	}

	close(cw.changes)
	close(cw.errors)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Changes returns the channel of debounced change notifications.
// This channel is closed when the watcher is stopped.
func (cw *ConfigWatcher) Changes() <-chan ChangeEvent {
	return cw.changes
}

// Errors returns the channel that emits watcher errors.
// This channel is closed when the watcher is stopped.
func (cw *ConfigWatcher) Errors() <-chan error {
	return cw.errors
}

// IsRunning returns true if the watcher is currently running.
func (cw *ConfigWatcher) IsRunning() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.running
}

func (cw *ConfigWatcher) processEvents() {
	defer cw.wg.Done()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending ChangeEvent
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			change, ok := cw.convertEvent(event)
			if !ok {
				continue
			}
			pending = change
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				timer.Reset(cw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case cw.changes <- pending:
			case <-cw.done:
				return
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case cw.errors <- err:
			case <-cw.done:
				return
			}
		}
	}
}

// convertEvent keeps events for the watched file and drops chmod noise.
func (cw *ConfigWatcher) convertEvent(event fsnotify.Event) (ChangeEvent, bool) {
	abs, err := filepath.Abs(event.Name)
	if err != nil || abs != cw.path {
		return ChangeEvent{}, false
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return ChangeEvent{Path: cw.path}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return ChangeEvent{Path: cw.path, Removed: true}, true
	default:
		return ChangeEvent{}, false
	}
}
