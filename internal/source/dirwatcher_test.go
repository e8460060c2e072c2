package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirWatcherSurfacesNewManifest(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDirWatcher(dir)
	if err != nil {
		t.Fatalf("NewDirWatcher() error = %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "logging.modexport.json")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-w.Events():
		if d.Name != "logging" {
			t.Fatalf("Name = %q, want logging", d.Name)
		}
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for manifest event")
	}
}

func TestDirWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDirWatcher(dir)
	if err != nil {
		t.Fatalf("NewDirWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-w.Events():
		t.Fatalf("unexpected event for non-manifest file: %+v", d)
	case <-time.After(300 * time.Millisecond):
	}
}
