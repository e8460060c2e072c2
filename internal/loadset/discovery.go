package loadset

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/modver"
	"github.com/arborlang/modlink/internal/source"
)

// ioConcurrency returns the concurrency for I/O bound manifest scans. It
// reads MODLINK_MAX_CONCURRENCY if set, otherwise uses GOMAXPROCS*8.
func ioConcurrency() int {
	if v := os.Getenv("MODLINK_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > 1024 {
				return 1024
			}

			return n
		}
	}

	c := runtime.GOMAXPROCS(0) * 8
	if c < 4 {
		c = 4
	}

	if c > 1024 {
		c = 1024
	}

	return c
}

// AddModulesFromLocal drains seq, running each candidate through filter
// and staging accepted descriptors via AddModule. It stops at the first
// AddModule failure and returns that error; descriptors already staged
// remain staged.
func (s *Set) AddModulesFromLocal(seq iter.Seq[export.Descriptor], filter Filter, engineCompatible func(modver.Version) bool) error {
	for d := range seq {
		if filter != nil && filter(d) == FilterSkip {
			continue
		}

		if err := s.AddModule(NoopHandle, NoopHandle, d, engineCompatible); err != nil {
			return err
		}
	}

	return nil
}

// AddModulesFromPath walks root for manifest files, parsing up to
// ioConcurrency() of them concurrently, then applies filter to each and
// stages accepted descriptors in path order (so staging order is
// deterministic even though parsing is not).
func (s *Set) AddModulesFromPath(ctx context.Context, root string, filter Filter, engineCompatible func(modver.Version) bool) error {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if source.IsManifest(path) {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return err
	}

	descriptors := make([]export.Descriptor, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ioConcurrency())

	for i, p := range paths {
		i, p := i, p

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			d, err := source.ParseFile(p)
			if err != nil {
				return err
			}

			descriptors[i] = d

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, d := range descriptors {
		if filter != nil && filter(d) == FilterSkip {
			continue
		}

		if err := s.AddModule(NoopHandle, NoopHandle, d, engineCompatible); err != nil {
			return err
		}
	}

	return nil
}
