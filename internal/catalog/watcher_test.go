package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/pmoves-ai/pulse/internal/catalog"
	"go.uber.org/goleak"
)

func writeCatalogFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "services.yml")
	writeCatalogFile(t, path, "- name: a\n  url: http://a:80\n")

	initial, err := FromYAMLFile(path)
	if err != nil {
		t.Fatal(err)
	}

	store := NewStore(initial)
	watcher := NewWatcher(logr.Discard(), path, store)

	swapped := make(chan *Catalog, 1)
	watcher.OnSwap(func(c *Catalog) {
		select {
		case swapped <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx)
	}()

	// Give the watcher time to establish the directory watch before writing.
	time.Sleep(100 * time.Millisecond)

	writeCatalogFile(t, path, "- name: a\n  url: http://a:80\n- name: b\n  url: http://b:80\n")

	select {
	case c := <-swapped:
		if c.Len() != 2 {
			t.Fatalf("expected 2 services after reload, got %d", c.Len())
		}
		if store.Get().Len() != 2 {
			t.Fatal("store was not updated with the reloaded catalog")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestWatcherKeepsCatalogOnBadReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "services.yml")
	writeCatalogFile(t, path, "- name: a\n  url: http://a:80\n")

	initial, err := FromYAMLFile(path)
	if err != nil {
		t.Fatal(err)
	}

	store := NewStore(initial)
	watcher := NewWatcher(logr.Discard(), path, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	writeCatalogFile(t, path, "- name: [broken\n")

	// Wait past the debounce window, then confirm the previous catalog survived.
	time.Sleep(time.Second)

	if store.Get() != initial {
		t.Fatal("expected previous catalog to be kept after a failed reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
