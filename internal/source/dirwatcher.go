package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/arborlang/modlink/internal/export"
)

// ManifestSuffix is the file suffix a DirWatcher treats as a candidate
// module manifest.
const ManifestSuffix = ".modexport.json"

// DirWatcher surfaces newly written manifest files under one or more
// directories as candidate export descriptors for the next LoadingSet.
// It never touches an instance already loaded; a file event only ever
// produces a Descriptor on the Events channel for a caller to admit.
type DirWatcher struct {
	watcher *fsnotify.Watcher
	events  chan export.Descriptor
	errs    chan error
	done    chan struct{}
}

// NewDirWatcher starts watching each of dirs for manifest writes.
func NewDirWatcher(dirs ...string) (*DirWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("source: create watcher: %w", err)
	}

	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			fw.Close()
			return nil, fmt.Errorf("source: watch %s: %w", d, err)
		}
	}

	w := &DirWatcher{
		watcher: fw,
		events:  make(chan export.Descriptor),
		errs:    make(chan error),
		done:    make(chan struct{}),
	}

	go w.run()

	return w, nil
}

func (w *DirWatcher) run() {
	defer close(w.events)
	defer close(w.errs)

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			if !strings.HasSuffix(ev.Name, ManifestSuffix) {
				continue
			}

			d, err := ParseFile(ev.Name)
			if err != nil {
				select {
				case w.errs <- err:
				case <-w.done:
					return
				}

				continue
			}

			select {
			case w.events <- d:
			case <-w.done:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errs <- err:
			case <-w.done:
				return
			}
		}
	}
}

// Events yields a Descriptor for every admitted manifest write.
func (w *DirWatcher) Events() <-chan export.Descriptor {
	return w.events
}

// Errors yields filesystem and parse errors encountered while watching.
func (w *DirWatcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher and releases its underlying file descriptors.
func (w *DirWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// IsManifest reports whether name looks like a manifest file, used by
// directory-walk callers that do not go through the watcher.
func IsManifest(name string) bool {
	return strings.HasSuffix(name, ManifestSuffix)
}

// Base returns a manifest path's basename with ManifestSuffix removed.
// Parse does not fall back to it: a manifest without a "name" field
// yields a Descriptor with an empty Name.
func Base(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, ManifestSuffix)
}
