package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/storage"
)

// Change kinds passed to EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

// renameSettle is how long the watcher waits after a rename before
// reconciling the index with the disk.
const renameSettle = 200 * time.Millisecond

// noteFilter is implemented by providers that know their note extensions.
type noteFilter interface {
	IsNote(name string) bool
}

type watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	notify EventCallback
}

// Watch follows file changes below vaultRoot until ctx is cancelled, keeping
// db in step. cb, if non-nil, runs after each index mutation.
//
// Directories created later are watched too. fsnotify reports a rename only
// on the old path, so renames trigger a short-delayed reconcile pass.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, vaultRoot); err != nil {
		return err
	}

	wt := &watcher{db: db, store: store, root: vaultRoot, logger: logger, notify: cb}
	logger.Info("watcher: started", slog.String("root", vaultRoot))

	settle := time.NewTimer(renameSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-settle.C:
			wt.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if wt.isDirCreate(ev) {
				if err := addDirsRecursive(fw, ev.Name); err != nil {
					logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
				}
				wt.indexDir(ev.Name)
				continue
			}
			if wt.handle(ev) {
				settle.Reset(renameSettle)
			}

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

func (w *watcher) emit(kind, rel string) {
	if w.notify != nil {
		w.notify(kind, rel)
	}
}

func (w *watcher) isDirCreate(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) {
		return false
	}
	info, err := os.Stat(ev.Name)
	return err == nil && info.IsDir() && !isHidden(w.root, ev.Name)
}

// rel maps an absolute event path to a vault path, rejecting hidden and
// non-note files.
func (w *watcher) rel(abs string) (string, bool) {
	if !isNote(w.store, abs) || isHidden(w.root, abs) {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// handle applies one file event and reports whether a reconcile is needed.
func (w *watcher) handle(ev fsnotify.Event) bool {
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}
	switch {
	case ev.Has(fsnotify.Create):
		w.upsert(rel, ev.Name, ChangeCreated)
	case ev.Has(fsnotify.Write):
		w.upsert(rel, ev.Name, ChangeUpdated)
	case ev.Has(fsnotify.Remove):
		w.remove(rel)
	case ev.Has(fsnotify.Rename):
		w.remove(rel)
		return true
	}
	return false
}

func (w *watcher) upsert(rel, abs, kind string) bool {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return false
	}
	if err := indexFile(w.db, rel, data, modTime(abs)); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return false
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.emit(kind, rel)
	return true
}

func (w *watcher) remove(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.emit(ChangeDeleted, rel)
}

// reconcile drops index rows whose files are gone and indexes files whose
// checksum is unknown or stale.
func (w *watcher) reconcile() {
	known, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
		sum, seen := known[m.Path]
		if seen && sum == m.Checksum {
			continue
		}
		kind := ChangeCreated
		if seen {
			kind = ChangeUpdated
		}
		w.upsert(m.Path, filepath.Join(w.root, filepath.FromSlash(m.Path)), kind)
	}
	for p := range known {
		if _, ok := onDisk[p]; !ok {
			w.remove(p)
		}
	}
}

// indexDir indexes the notes already present in a newly created directory.
func (w *watcher) indexDir(dir string) {
	_ = filepath.WalkDir(dir, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if abs != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, ok := w.rel(abs); ok {
			w.upsert(rel, abs, ChangeCreated)
		}
		return nil
	})
}

func isNote(store storage.Provider, name string) bool {
	if f, ok := store.(noteFilter); ok {
		return f.IsNote(name)
	}
	return strings.EqualFold(filepath.Ext(name), ".md")
}

func modTime(abs string) time.Time {
	if info, err := os.Stat(abs); err == nil {
		return info.ModTime()
	}
	return time.Now()
}

// addDirsRecursive watches root and every non-hidden directory below it.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// isHidden reports whether any element of abs below root is dot-prefixed.
func isHidden(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
