package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestWalkIncludeExclude(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.md", "hello")
	writeTestFile(t, dir, "photo.png", "img")
	writeTestFile(t, dir, "binary.exe", "bin")
	writeTestFile(t, dir, filepath.Join("node_modules", "pkg", "index.md"), "dep")
	writeTestFile(t, dir, filepath.Join("docs", "guide.txt"), "guide")

	w := NewWalker(
		[]string{"**/*.md", "**/*.txt", "**/*.png"},
		[]string{"node_modules/**"},
	)
	files, err := w.Walk(dir)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	found := make(map[string]bool)
	for _, f := range files {
		rel, err := filepath.Rel(dir, f.Path)
		if err != nil {
			t.Fatalf("expected absolute path under root, got %s", f.Path)
		}
		found[filepath.ToSlash(rel)] = true

		if f.Size <= 0 || f.ModTime <= 0 {
			t.Errorf("missing size/mtime for %s: %+v", rel, f)
		}
	}

	for _, want := range []string{"notes.md", "photo.png", "docs/guide.txt"} {
		if !found[want] {
			t.Errorf("expected %s in walk results, got %v", want, found)
		}
	}
	if found["binary.exe"] {
		t.Error("extension outside includes was walked")
	}
	if found["node_modules/pkg/index.md"] {
		t.Error("excluded directory was walked")
	}
}

func TestWalkDefaultsToEverything(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "anything.xyz", "data")

	files, err := NewWalker(nil, nil).Walk(dir)
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 file with default includes, got %d", len(files))
	}
}

func TestIsImagePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"photo.png", true},
		{"photo.PNG", true},
		{"scan.jpeg", true},
		{"banner.webp", true},
		{"icon.svg", true},
		{"notes.md", false},
		{"archive.png.zip", false},
		{"noextension", false},
	}
	for _, tt := range tests {
		if got := IsImagePath(tt.path); got != tt.want {
			t.Errorf("IsImagePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestPlainTextExtract(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.txt", "line one\nline two")

	text, err := PlainText{}.Extract(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if text != "line one\nline two" {
		t.Errorf("unexpected content: %q", text)
	}

	if _, err := (PlainText{}).Extract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
