package fsjson

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string // "" means don't create the file
		want    Status
	}{
		{"missing file", "", Missing},
		{"valid object", `{"a":{"x":1}}`, Ok},
		{"empty object", `{}`, Ok},
		{"truncated json", `{"a":{"x":`, Corrupt},
		{"json null", `null`, Corrupt},
		{"json array", `[1,2]`, Corrupt},
		{"garbage", `not json at all`, Corrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			m, status, err := Read(path)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if status != tt.want {
				t.Errorf("Read() status = %v, want %v", status, tt.want)
			}
			if status == Ok && m == nil {
				t.Error("Read() returned Ok with nil map")
			}
			if status != Ok && m != nil {
				t.Errorf("Read() returned non-nil map with status %v", status)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data")
		in := map[string]any{"doc1": map[string]any{"level": "info"}}
		if err := Write(path, in); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		m, status, err := Read(path)
		if err != nil || status != Ok {
			t.Fatalf("Read() = %v, %v", status, err)
		}
		doc, ok := m["doc1"].(map[string]any)
		if !ok || doc["level"] != "info" {
			t.Errorf("Read() = %v, want doc1.level=info", m)
		}
	})

	t.Run("replaces existing content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data")
		if err := Write(path, map[string]any{"old": true}); err != nil {
			t.Fatal(err)
		}
		if err := Write(path, map[string]any{"new": true}); err != nil {
			t.Fatal(err)
		}
		m, _, _ := Read(path)
		if _, ok := m["old"]; ok {
			t.Error("old content survived a Write()")
		}
	})

	t.Run("creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "dir", "data")
		if err := Write(path, map[string]any{}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !Exists(path) {
			t.Error("file not created")
		}
	})

	t.Run("no temp file left behind", func(t *testing.T) {
		dir := t.TempDir()
		if err := Write(filepath.Join(dir, "data"), map[string]any{"a": 1}); err != nil {
			t.Fatal(err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".tmp") {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data")
		if err := Write(path, map[string]any{"bad": make(chan int)}); err == nil {
			t.Error("Write() with channel value did not fail")
		}
		if Exists(path) {
			t.Error("failed Write() created the destination file")
		}
	})
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(filepath.Join(dir, "nope")) {
		t.Error("Exists() = true for missing file")
	}
	if Exists(dir) {
		t.Error("Exists() = true for directory")
	}
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists() = false for regular file")
	}
}
