package docdex

import (
	"context"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maruel/docdex/internal/fsjson"
)

// IndexStats summarizes one index on disk.
type IndexStats struct {
	Docs       int  `json:"docs"`
	HasMapping bool `json:"has_mapping"`
	HasBackup  bool `json:"has_backup"`
}

// ListIndices returns the names of all indices under the storage root, in
// lexical order. Mapping, backup, quarantine, and stray temp files are not
// indices.
func (s *Store) ListIndices() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() ||
			strings.HasSuffix(name, mappingSuffix) ||
			strings.HasSuffix(name, backupSuffix) ||
			strings.HasSuffix(name, quarantineSuffix) ||
			strings.HasSuffix(name, ".tmp") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Stats reads every index concurrently and returns per-index document
// counts. Reads are lock-free, so counts reflect some recent snapshot of
// each index.
func (s *Store) Stats(ctx context.Context) (map[string]IndexStats, error) {
	names, err := s.ListIndices()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	stats := make(map[string]IndexStats, len(names))
	g, _ := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			docs, err := s.loadForRead(name)
			if err != nil {
				return err
			}
			p := pathsFor(s.root, name)
			st := IndexStats{
				Docs:       len(docs),
				HasMapping: fsjson.Exists(p.mapping),
				HasBackup:  fsjson.Exists(p.backup),
			}
			mu.Lock()
			stats[name] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
