package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

var ErrWatcherNotStarted = errors.New("file watcher not started")

// FileWatcher calls back when a watched file changes. The parent directory
// is watched so that editors which replace the file are still seen.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	callbacks map[string][]func()
	dirs      map[string]bool
	mu        sync.RWMutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	debounce  time.Duration
	logger    Logger
}

func NewFileWatcher(logger Logger) *FileWatcher {
	return &FileWatcher{
		callbacks: make(map[string][]func()),
		dirs:      make(map[string]bool),
		debounce:  defaultDebounce,
		logger:    logger,
	}
}

func (w *FileWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.watchLoop(watcher, w.stopCh, w.doneCh)
	return nil
}

// Watch registers callback for path.
func (w *FileWatcher) Watch(path string, callback func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return ErrWatcherNotStarted
	}
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.callbacks[abs] = append(w.callbacks[abs], callback)
	w.logger.Debug("watching file", "path", abs)
	return nil
}

func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	watcher, done := w.watcher, w.doneCh
	w.mu.Unlock()

	err := watcher.Close()
	<-done
	return err
}

func (w *FileWatcher) watchLoop(watcher *fsnotify.Watcher, stop, done chan struct{}) {
	defer close(done)

	var (
		debounceTimer *time.Timer
		debounceMutex sync.Mutex
	)
	pendingPaths := make(map[string]bool)

	fire := func() {
		debounceMutex.Lock()
		paths := make([]string, 0, len(pendingPaths))
		for path := range pendingPaths {
			paths = append(paths, path)
		}
		pendingPaths = make(map[string]bool)
		debounceMutex.Unlock()

		w.mu.RLock()
		var pending []func()
		for _, path := range paths {
			pending = append(pending, w.callbacks[path]...)
		}
		w.mu.RUnlock()

		for _, cb := range pending {
			cb()
		}
	}

	for {
		select {
		case <-stop:
			debounceMutex.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceMutex.Unlock()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(event.Name)
			w.mu.RLock()
			_, exists := w.callbacks[name]
			w.mu.RUnlock()
			if !exists {
				continue
			}

			debounceMutex.Lock()
			pendingPaths[name] = true
			if debounceTimer == nil {
				debounceTimer = time.AfterFunc(w.debounce, fire)
			} else {
				debounceTimer.Reset(w.debounce)
			}
			debounceMutex.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}
