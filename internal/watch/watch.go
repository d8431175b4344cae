// Package watch reruns the pipeline when new material lands in an input
// directory. Every directory beneath a watched root is watched too, and bursts
// of events are debounced into one run, so a delivery copied frame by frame
// into nested folders triggers a single pass once it goes quiet.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"dpxflow/internal/logging"
)

// Trigger runs one pipeline pass.
type Trigger func(ctx context.Context) error

// Watcher debounces directory events into pipeline runs.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	trigger  Trigger
	logger   *slog.Logger
}

// New constructs a Watcher over dirs.
func New(dirs []string, debounce time.Duration, trigger Trigger, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{
		dirs:     dirs,
		debounce: debounce,
		trigger:  trigger,
		logger:   logging.NewComponentLogger(logger, "watch"),
	}
}

// Run performs an initial pass and then one pass per quiet period after
// activity, until ctx is cancelled. Pass errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()
	for _, dir := range w.dirs {
		if err := addTree(watcher, dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Info("watching for deliveries", logging.Args(
		logging.Any("dirs", w.dirs),
		logging.Duration("debounce", w.debounce),
		logging.EventType("watch_start"),
	)...)

	w.fire(ctx, "startup")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watch stopped", logging.EventType("watch_stop"))
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("activity", logging.String("path", event.Name), logging.String("op", event.Op.String()))
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.watchNew(watcher, event.Name)
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			w.fire(ctx, "activity")
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some deliveries may wait for the next event"),
			)
		}
	}
}

func (w *Watcher) fire(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Info("pass triggered", logging.String("reason", reason), logging.EventType("watch_trigger"))
	if err := w.trigger(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(w.logger, "pass failed", "watch_pass_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "retried on next activity"),
		)
	}
}

// watchNew starts watching path when it is a directory that appeared after
// startup, along with anything already created beneath it.
func (w *Watcher) watchNew(watcher *fsnotify.Watcher, path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := addTree(watcher, path); err != nil {
		logging.WarnWithContext(w.logger, "cannot watch new directory", "watch_add_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "changes inside it will not delay the next pass"),
		)
	}
}

// addTree watches root and every directory below it. fsnotify watches are
// not recursive.
func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
