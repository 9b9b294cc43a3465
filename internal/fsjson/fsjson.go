// Package fsjson provides JSON object file primitives with atomic replace
// semantics.
//
// Read never fails on absent or unparseable files: it reports a Status tag
// and callers decide how to proceed. Write goes through a temp file in the
// destination directory followed by a rename, so a reader never observes a
// partially-written file.
package fsjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Status classifies the outcome of reading a JSON object file.
type Status int

const (
	// Ok means the file existed and parsed as a JSON object.
	Ok Status = iota
	// Missing means the file does not exist.
	Missing
	// Corrupt means the file exists but its content is not a valid JSON object.
	Corrupt
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Missing:
		return "missing"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Read loads a JSON object from path.
//
// A non-existent file yields (nil, Missing, nil). Unparseable content yields
// (nil, Corrupt, nil). Only genuine filesystem failures (permissions, I/O)
// return a non-nil error.
func Read(path string) (map[string]any, Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Missing, nil
		}
		return nil, Missing, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, Corrupt, nil
	}
	if m == nil {
		// "null" parses fine but is not an object.
		return nil, Corrupt, nil
	}
	return m, Ok, nil
}

// Write atomically replaces path with the JSON encoding of v.
//
// The encoding is written to a temp file in the same directory, then renamed
// over the destination. The temp file is removed on every failure path.
func Write(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write temp file: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename %s into place: %w", tmpPath, err), os.Remove(tmpPath))
	}
	return nil
}

// Exists reports whether path exists as a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
