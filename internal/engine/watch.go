package engine

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay collapses the burst of events an editor save produces.
const debounceDelay = 100 * time.Millisecond

// Watch rediscovers models whenever a .sql file under the models directory
// changes and then calls onChange. It blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context, onChange func(changed string, err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDir(watcher, e.cfg.ModelsDir); err != nil {
		return fmt.Errorf("failed to watch models dir: %w", err)
	}
	e.logger.Debug("watching models", "dir", e.cfg.ModelsDir)

	var (
		timer   *time.Timer
		pending = make(chan string, 1)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// new subdirectories need their own watch
				_ = watchDir(watcher, event.Name)
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".sql") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			name := event.Name
			timer = time.AfterFunc(debounceDelay, func() {
				select {
				case pending <- name:
				default:
				}
			})

		case name := <-pending:
			e.logger.Debug("change detected", "file", name)
			_, err := e.Discover(ctx)
			onChange(name, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDir recursively adds a directory to the watcher, skipping hidden
// directories.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
