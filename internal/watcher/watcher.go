// Package watcher turns filesystem events on the diagnostics export path
// into debounced synchronization triggers.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// registrationRetryInterval is how often watch registration is retried
// while the export path's directory does not exist yet.
const registrationRetryInterval = time.Second

// Watch observes path for modifications and emits one trigger per burst of
// events within the debounce window. Bursts without at least one
// modification are ignored. The returned channel is closed when ctx is
// cancelled.
//
// The watch is registered on the containing directory, not the path itself.
// Checkers rewrite the export file by renaming a fresh file over it, which
// drops any watch held on the old inode; a directory watch survives the
// replacement. It also covers the path not existing yet at startup, so
// registration only has to retry while the directory is missing.
func Watch(ctx context.Context, path string, debounce time.Duration) <-chan struct{} {
	triggers := make(chan struct{}, 1)
	go run(ctx, path, debounce, triggers)
	return triggers
}

func run(ctx context.Context, path string, debounce time.Duration, triggers chan struct{}) {
	defer close(triggers)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("cannot create filesystem watcher", "err", err)
		return
	}
	defer func() {
		if err := fw.Close(); err != nil {
			slog.Warn("error closing filesystem watcher", "err", err)
		}
	}()

	if !register(ctx, fw, path) {
		return
	}

	var (
		timer     *time.Timer
		timerC    <-chan time.Time
		sawModify bool
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !concerns(path, event.Name) {
				continue
			}
			slog.Debug("filesystem event", "event", event)
			if timerC == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			}
			if modifies(path, event) {
				sawModify = true
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("filesystem watcher error", "err", err)

		case <-timerC:
			timerC = nil
			if sawModify {
				sawModify = false
				select {
				case triggers <- struct{}{}:
				default:
					// A trigger is already pending; coalesce.
				}
			}
		}
	}
}

// concerns reports whether an event on name affects path: the path itself,
// or anything below it when path is a directory. Sibling files in the
// watched directory are filtered out here.
func concerns(path, name string) bool {
	return name == path || strings.HasPrefix(name, path+string(os.PathSeparator))
}

// modifies reports whether the event changes the export content. A write
// counts anywhere under the path; creation counts only for the path itself,
// since a rename-over replacement surfaces as a create of the target name.
// Chmod and removal batches stay ignored.
func modifies(path string, event fsnotify.Event) bool {
	if event.Has(fsnotify.Write) {
		return true
	}
	return event.Name == path && event.Has(fsnotify.Create)
}

// register adds the path's containing directory to the watcher, retrying
// until it succeeds or ctx is cancelled. When path turns out to be a
// directory itself it is watched recursively, since the export file may
// appear anywhere below it.
func register(ctx context.Context, fw *fsnotify.Watcher, path string) bool {
	ticker := time.NewTicker(registrationRetryInterval)
	defer ticker.Stop()

	for {
		if err := fw.Add(watchRoot(path)); err == nil {
			slog.Info("watching diagnostics export path", "path", path)
			watchSubdirectories(fw, path)
			return true
		} else {
			slog.Debug("watch registration failed, retrying", "path", path, "err", err)
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// watchRoot picks the directory carrying the watch: path itself when it is
// an existing directory, its parent otherwise.
func watchRoot(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

func watchSubdirectories(fw *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	_ = filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || sub == path {
			return nil
		}
		if err := fw.Add(sub); err != nil {
			slog.Debug("cannot watch subdirectory", "path", sub, "err", err)
		}
		return nil
	})
}
