package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher signals when a single file is written, created or renamed
// into place. The parent directory is watched so editors that replace the
// file atomically are still noticed.
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	path       string
	mu         sync.Mutex
	logger     *slog.Logger
	reloadChan chan struct{}
}

// WatchFile starts watching path
func WatchFile(path string, logger *slog.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	fw := &FileWatcher{
		watcher:    watcher,
		path:       abs,
		logger:     logger,
		reloadChan: make(chan struct{}, 1),
	}

	go fw.watch(watcher)
	return fw, nil
}

// Changes returns a channel that receives a value after the file changed.
// Bursts of events collapse into one pending notification. The channel is
// closed once the watcher stops.
func (fw *FileWatcher) Changes() <-chan struct{} {
	return fw.reloadChan
}

func (fw *FileWatcher) watch(w *fsnotify.Watcher) {
	defer close(fw.reloadChan)

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fw.logger.Info("detected file change", "path", fw.path, "op", event.Op.String())
				select {
				case fw.reloadChan <- struct{}{}:
				default:
					// a notification is already pending
				}
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			fw.logger.Error("watcher error", "error", err)
		}
	}
}

// Stop stops the watcher
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.watcher != nil {
		if err := fw.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close watcher: %w", err)
		}
		fw.watcher = nil
	}
	return nil
}
