package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"mindloop/internal/logging"
	"mindloop/internal/types"

	"github.com/fsnotify/fsnotify"
)

// ModeWatcher watches the config file and publishes speech mode changes.
// The heartbeat drains Modes() at tick boundaries, so the watcher never
// touches process state directly.
type ModeWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	modes    chan types.SpeechMode
	current  types.SpeechMode
	debounce time.Duration
}

// NewModeWatcher creates a watcher for the config file at path.
// initial is the mode already in effect; only changes are published.
func NewModeWatcher(path string, initial types.SpeechMode) (*ModeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return &ModeWatcher{
		path:     abs,
		watcher:  watcher,
		modes:    make(chan types.SpeechMode, 1),
		current:  initial,
		debounce: 200 * time.Millisecond, // editors write in bursts
	}, nil
}

// Modes returns the channel of newly configured speech modes.
func (w *ModeWatcher) Modes() <-chan types.SpeechMode {
	return w.modes
}

// Run watches until ctx is cancelled. The directory is watched rather than the
// file so atomic replace-on-save is seen.
func (w *ModeWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	logging.Boot("ModeWatcher: watching %s", w.path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logging.BootDebug("ModeWatcher: context cancelled")
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryBoot).Warn("ModeWatcher: watch error: %v", err)

		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *ModeWatcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Get(logging.CategoryBoot).Warn("ModeWatcher: reload failed: %v", err)
		return
	}
	mode := types.SpeechMode(cfg.Speech.Mode)
	if !mode.Valid() {
		logging.Get(logging.CategoryBoot).Warn("ModeWatcher: ignoring invalid speech mode %q", mode)
		return
	}
	if mode == w.current {
		return
	}
	w.current = mode

	// Keep only the newest value if the heartbeat has not drained the last one.
	select {
	case <-w.modes:
	default:
	}
	w.modes <- mode
	logging.Boot("ModeWatcher: speech mode changed to %s", mode)
}
