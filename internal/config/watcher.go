package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/edgegate-io/edgegate/internal/logging"
)

// Watcher watches for config file changes and triggers reloads.
type Watcher struct {
	filepath string
	logger   *logging.Logger
	onChange func(*Config) error
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a new config file watcher. The containing directory is
// watched rather than the file itself so editor atomic writes are seen.
func NewWatcher(path string, logger *logging.Logger, onChange func(*Config) error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &Watcher{
		filepath: path,
		logger:   logger,
		onChange: onChange,
		watcher:  watcher,
	}, nil
}

// Start begins watching for config changes until the context is canceled.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("config_watcher_started", "file", w.filepath)

	// Debounce timer to avoid multiple reloads on bursty writes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config_watcher_stopped")
			w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if filepath.Base(event.Name) == filepath.Base(w.filepath) {
					w.logger.Info("config_file_changed", "event", event.Op.String())

					if debounceTimer != nil {
						debounceTimer.Stop()
					}

					debounceTimer = time.AfterFunc(debounceDuration, func() {
						w.reloadConfig()
					})
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config_watcher_error", "error", err.Error())
		}
	}
}

// reloadConfig loads the config and calls the onChange callback.
func (w *Watcher) reloadConfig() {
	w.logger.Info("reloading_config", "file", w.filepath)

	cfg, err := LoadConfig(w.filepath)
	if err != nil {
		w.logger.Error("config_reload_failed", "error", err.Error())
		return
	}

	if err := w.onChange(cfg); err != nil {
		w.logger.Error("config_apply_failed", "error", err.Error())
		return
	}

	w.logger.Info("config_reloaded_successfully")
}
