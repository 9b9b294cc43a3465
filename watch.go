package docdex

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch reports external modifications to index data files under the
// storage root by calling fn with the affected index name. It blocks until
// ctx is canceled. Changes to mapping, backup, quarantine, and temp files
// are ignored, as are this process's own temp-then-rename write steps that
// don't land on a data file.
func (s *Store) Watch(ctx context.Context, fn func(index string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(s.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(event.Name)
			if strings.HasSuffix(name, mappingSuffix) ||
				strings.HasSuffix(name, backupSuffix) ||
				strings.HasSuffix(name, quarantineSuffix) ||
				strings.HasSuffix(name, ".tmp") {
				continue
			}
			fn(name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("error watching storage root", "err", err)
		}
	}
}
