// Package configwatch loads a YAML file into a typed configuration resource
// at startup and keeps it fresh: whenever the file changes on disk, the
// resource is re-parsed and swapped under its storage lock, so systems see a
// consistent value for the duration of each invocation.
package configwatch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/looper"
)

// Module watches one YAML file backing one resource of type T. The zero
// value of T is the fallback when a reload fails to parse; the previous
// value is kept and the failure logged.
type Module[T any] struct {
	// Path is the YAML file to load and watch.
	Path string
}

// Install implements looper.Module: a startup system performs the initial
// load, registers the resource, and starts the watcher goroutine for the
// lifetime of the process.
func (m Module[T]) Install(b *looper.Builder) error {
	if m.Path == "" {
		return fmt.Errorf("configwatch: path is required")
	}
	logger := b.Logger()
	path := m.Path

	b.AddStartupSystem("configwatch-load", func(storage *looper.Storage) error {
		value, err := loadFile[T](path)
		if err != nil {
			return fmt.Errorf("configwatch: initial load of %s: %w", path, err)
		}
		if err := looper.AddResource(storage, value); err != nil {
			return err
		}
		return watch[T](storage, logger, path)
	})
	return nil
}

func loadFile[T any](path string) (T, error) {
	var value T
	data, err := os.ReadFile(path)
	if err != nil {
		return value, err
	}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decoding %s: %w", path, err)
	}
	return value, nil
}

// watch starts the fsnotify loop. Watching the directory rather than the
// file survives the write-rename dance editors and config management tools
// perform on save.
func watch[T any](storage *looper.Storage, logger looper.Logger, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("configwatch: creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("configwatch: watching %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				reload[T](storage, logger, path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("Config watcher error", "path", path, "error", err)
			}
		}
	}()
	return nil
}

func reload[T any](storage *looper.Storage, logger looper.Logger, path string) {
	value, err := loadFile[T](path)
	if err != nil {
		logger.Error("Config reload failed, keeping previous value", "path", path, "error", err)
		return
	}
	if err := looper.UpdateResource(storage, func(current *T) {
		*current = value
	}); err != nil {
		logger.Error("Config reload failed", "path", path, "error", err)
		return
	}
	logger.Info("Config reloaded", "path", path)
}
