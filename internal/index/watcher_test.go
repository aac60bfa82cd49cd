package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/storage"
)

type watchHarness struct {
	root   string
	store  *storage.FS
	db     *DB
	logger *slog.Logger

	mu     sync.Mutex
	events []string
}

func newWatchHarness(t *testing.T) *watchHarness {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db, err := Open(filepath.Join(t.TempDir(), "watch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &watchHarness{
		root:   root,
		store:  store,
		db:     db,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

func (h *watchHarness) record(kind, path string) {
	h.mu.Lock()
	h.events = append(h.events, kind+":"+path)
	h.mu.Unlock()
}

func (h *watchHarness) saw(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.events, event)
}

func (h *watchHarness) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(h.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (h *watchHarness) indexed(path string) bool {
	sum, _ := h.db.GetChecksum(path)
	return sum != ""
}

// start runs Watch until the test ends and waits for it to attach.
func (h *watchHarness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = Watch(ctx, h.db, h.store, h.root, h.logger, h.record)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func eventually(t *testing.T, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Error(msg)
}

func TestIsHidden(t *testing.T) {
	root := filepath.FromSlash("/vault")
	cases := map[string]bool{
		"/vault/a.md":           false,
		"/vault/sub/a.md":       false,
		"/vault/.obsidian/a.md": true,
		"/vault/sub/.hidden.md": true,
	}
	for p, want := range cases {
		if got := isHidden(root, filepath.FromSlash(p)); got != want {
			t.Errorf("isHidden(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestIsNote_UsesProviderExtensions(t *testing.T) {
	store, err := storage.NewFS(t.TempDir(), ".md", ".markdown")
	if err != nil {
		t.Fatal(err)
	}
	if !isNote(store, "x.markdown") || isNote(store, "x.txt") {
		t.Error("provider extensions not honoured")
	}
}

func TestReconcile(t *testing.T) {
	h := newWatchHarness(t)
	h.write(t, "keep.md", "same")
	h.write(t, "edit.md", "v1")
	h.write(t, "gone.md", "bye")
	if _, err := Sync(h.db, h.store, h.logger); err != nil {
		t.Fatal(err)
	}

	h.write(t, "edit.md", "v2")
	h.write(t, "new.md", "hi")
	if err := os.Remove(filepath.Join(h.root, "gone.md")); err != nil {
		t.Fatal(err)
	}

	w := &watcher{db: h.db, store: h.store, root: h.root, logger: h.logger, notify: h.record}
	w.reconcile()

	for _, want := range []string{"updated:edit.md", "created:new.md", "deleted:gone.md"} {
		if !h.saw(want) {
			t.Errorf("missing event %s in %v", want, h.events)
		}
	}
	if h.saw("updated:keep.md") || h.saw("created:keep.md") {
		t.Error("unchanged file must not be re-indexed")
	}
	if n, _ := h.db.Count(); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	h := newWatchHarness(t)
	h.start(t)

	h.write(t, "new.md", "# New")

	eventually(t, func() bool { return h.indexed("new.md") }, "new file not indexed by watcher")
	eventually(t, func() bool { return h.saw("created:new.md") }, "expected created:new.md callback")
}

func TestWatcher_IgnoresHiddenAndForeignFiles(t *testing.T) {
	h := newWatchHarness(t)
	h.write(t, ".trash/keep", "")
	h.start(t)

	h.write(t, ".trash/gone.md", "x")
	h.write(t, "image.png", "x")
	h.write(t, "real.md", "x")

	eventually(t, func() bool { return h.indexed("real.md") }, "real.md not indexed")
	if n, _ := h.db.Count(); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	h := newWatchHarness(t)
	h.start(t)

	if err := os.MkdirAll(filepath.Join(h.root, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	h.write(t, "subdir/deep.md", "# Deep")

	eventually(t, func() bool { return h.indexed("subdir/deep.md") }, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	h := newWatchHarness(t)
	h.write(t, "del.md", "# Delete Me")
	if _, err := Sync(h.db, h.store, h.logger); err != nil {
		t.Fatal(err)
	}
	h.start(t)

	if err := os.Remove(filepath.Join(h.root, "del.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool { return !h.indexed("del.md") }, "deleted file still in index")
	eventually(t, func() bool { return h.saw("deleted:del.md") }, "expected deleted:del.md callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	h := newWatchHarness(t)
	h.write(t, "old.md", "# Rename")
	if _, err := Sync(h.db, h.store, h.logger); err != nil {
		t.Fatal(err)
	}
	h.start(t)

	if err := os.Rename(filepath.Join(h.root, "old.md"), filepath.Join(h.root, "renamed.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool {
		return !h.indexed("old.md") && h.indexed("renamed.md")
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
