// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle is how long the watcher waits after the last file event before
// reloading. The crawler rewrites all four files in sequence; reloading after
// the first write would read a half-updated set.
const reloadSettle = 500 * time.Millisecond

// Watcher hot-reloads the dictionaries when the crawler rewrites them.
//
// Description:
//
//	Watches the dictionary directory with fsnotify. When any of the four
//	dictionary files is written, the whole set is re-read and, on success,
//	atomically swapped into the Store. A failed reload logs a warning and
//	keeps the previous snapshot serving; a broken crawler run must never
//	take the resolver down.
//
// Thread Safety: Run is the only entry point and owns all watcher state.
type Watcher struct {
	dir   string
	store *Store
}

// NewWatcher creates a watcher for the given dictionary directory.
func NewWatcher(dir string, store *Store) *Watcher {
	return &Watcher{dir: dir, store: store}
}

// Run watches until ctx is cancelled. Blocks; callers run it in a goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	slog.Info("Watching dictionary directory for updates", slog.String("dir", w.dir))

	var settle *time.Timer
	var settleC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isDictionaryFile(event.Name) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(reloadSettle)
				settleC = settle.C
			} else {
				settle.Reset(reloadSettle)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Dictionary watcher error", slog.String("error", err.Error()))

		case <-settleC:
			settle = nil
			settleC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	fresh, err := Load(w.dir)
	if err != nil {
		slog.Warn("Dictionary reload failed, keeping previous snapshot",
			slog.String("dir", w.dir),
			slog.String("error", err.Error()),
		)
		return
	}
	w.store.Replace(fresh)
	slog.Info("Dictionary snapshot replaced",
		slog.Int("products", fresh.Products.Len()),
	)
}

func isDictionaryFile(path string) bool {
	switch filepath.Base(path) {
	case ProductsFile, SizesFile, CoversFile, FabricsFile:
		return true
	}
	return false
}
