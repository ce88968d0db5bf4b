package storage

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JonMunkholm/wabatch/internal/core"
)

// DefaultMessageTemplate is used when no template file exists.
const DefaultMessageTemplate = "Hello {{name}}, your password is {{password}}."

var errTemplateSave = core.NewError(core.KindInternal, "TEMPLATE_SAVE_FAILED",
	http.StatusInternalServerError, "Could not save the default message template.")

// TemplateFile stores the default message template as a text file. It
// implements core.TemplateStore.
type TemplateFile struct {
	path string
	mu   sync.RWMutex
}

// NewTemplateFile uses the file at path.
func NewTemplateFile(path string) *TemplateFile {
	return &TemplateFile{path: path}
}

// Load returns the template with line endings normalized to \n, or
// DefaultMessageTemplate if the file is missing or unreadable.
func (t *TemplateFile) Load() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	data, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("message template unreadable, using default", "path", t.path, "error", err)
		}
		return DefaultMessageTemplate
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Save replaces the template file.
func (t *TemplateFile) Save(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errTemplateSave.Wrap(err)
		}
	}
	if err := os.WriteFile(t.path, []byte(text), 0o644); err != nil {
		return errTemplateSave.Wrap(err)
	}
	return nil
}
