package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.txt")
	tf := NewTemplateFile(path)

	if got := tf.Load(); got != DefaultMessageTemplate {
		t.Errorf("missing file Load() = %q, want default", got)
	}

	if err := tf.Save("Hi {{name}}\r\nline two\rline three"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, want := tf.Load(), "Hi {{name}}\nline two\nline three"; got != want {
		t.Errorf("Load() = %q, want %q", got, want)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "Hi {{name}}\r\nline two\rline three" {
		t.Errorf("Save should write text unchanged, got %q", raw)
	}
}

func TestTemplateFile_EmptyFileIsEmptyTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := NewTemplateFile(path).Load(); got != "" {
		t.Errorf("Load() = %q, want empty", got)
	}
}
