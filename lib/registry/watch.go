// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the table from filePath whenever the file is written
// or created, until ctx is done. The directory is
// watched rather than the file so that editors that replace the file
// are followed. A file that fails to load is logged and the current
// table stays in effect.
//
// Watch returns once the watcher is set up. changed, if non-nil,
// receives the outcome of every reload attempt.
func (r *Registry) Watch(ctx context.Context, filePath string, changed chan<- error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating feature file watcher: %w", err)
	}
	cleaned := filepath.Clean(filePath)
	if err := watcher.Add(filepath.Dir(cleaned)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(cleaned), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != cleaned {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				err := r.reload(cleaned)
				if changed != nil {
					select {
					case changed <- err:
					case <-ctx.Done():
						return
					}
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("feature file watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (r *Registry) reload(filePath string) error {
	table, err := LoadFile(filePath)
	if err != nil {
		r.logger.Error("feature table reload failed, keeping current table", "path", filePath, "error", err)
		return err
	}
	r.Replace(table)
	return nil
}
