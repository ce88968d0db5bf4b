package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/wabatch/internal/core"
)

// MetadataFileName is the JSON metadata file kept in the contacts directory.
const MetadataFileName = "metadata.json"

// metadataTimeLayout matches the timestamps written by earlier releases.
const metadataTimeLayout = "2006-01-02T15:04:05"

var errMetadataSave = core.NewError(core.KindInternal, "CONTACTS_METADATA_SAVE_FAILED",
	http.StatusInternalServerError, "Could not save contacts metadata.")

// Metadata is the operator-facing description of a stored file.
type Metadata struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// MetadataStore persists Metadata keyed by stored file name.
type MetadataStore interface {
	Get(ctx context.Context, name string) (Metadata, bool, error)
	All(ctx context.Context) (map[string]Metadata, error)
	// Set creates or replaces the display name and description; CreatedAt
	// is kept for existing entries.
	Set(ctx context.Context, name, displayName, description string) error
	Delete(ctx context.Context, name string) error
	// Prune removes entries whose name is not in keep and reports how many
	// were removed.
	Prune(ctx context.Context, keep []string) (int, error)
}

// JSONMetadataStore keeps metadata in a single JSON object on disk.
//
// A missing, unreadable or malformed file reads as empty. Keys that are not
// already secure file names are ignored on load.
type JSONMetadataStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewJSONMetadataStore stores metadata at path.
func NewJSONMetadataStore(path string) *JSONMetadataStore {
	return &JSONMetadataStore{path: path, now: time.Now}
}

// Path returns the metadata file location.
func (s *JSONMetadataStore) Path() string { return s.path }

func (s *JSONMetadataStore) load() map[string]Metadata {
	out := map[string]Metadata{}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("contacts metadata unreadable, treating as empty", "path", s.path, "error", err)
		}
		return out
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		slog.Warn("contacts metadata malformed, treating as empty", "path", s.path, "error", err)
		return out
	}

	for key, value := range parsed {
		if key == "" || SecureFilename(baseName(key)) != key {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(value, &entry); err != nil || entry == nil {
			continue
		}
		out[key] = Metadata{
			DisplayName: core.SanitizeMetadataText(entry["display_name"], core.MaxDisplayNameLen),
			Description: core.SanitizeMetadataText(entry["description"], core.MaxDescriptionLen),
			CreatedAt:   textField(entry["created_at"]),
			UpdatedAt:   textField(entry["updated_at"]),
		}
	}
	return out
}

func textField(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// save writes the metadata through a temp file so readers never see a
// partial document.
func (s *JSONMetadataStore) save(entries map[string]Metadata) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errMetadataSave.Wrap(err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errMetadataSave.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".metadata-*.json")
	if err != nil {
		return errMetadataSave.Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errMetadataSave.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return errMetadataSave.Wrap(err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errMetadataSave.Wrap(err)
	}
	return nil
}

func (s *JSONMetadataStore) Get(_ context.Context, name string) (Metadata, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.load()[name]
	return m, ok, nil
}

func (s *JSONMetadataStore) All(context.Context) (map[string]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *JSONMetadataStore) Set(_ context.Context, name, displayName, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	now := s.now().Format(metadataTimeLayout)
	entry := entries[name]
	if entry.CreatedAt == "" {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.DisplayName = core.SanitizeMetadataText(displayName, core.MaxDisplayNameLen)
	entry.Description = core.SanitizeMetadataText(description, core.MaxDescriptionLen)
	entries[name] = entry

	return s.save(entries)
}

func (s *JSONMetadataStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	if _, ok := entries[name]; !ok {
		return nil
	}
	delete(entries, name)
	return s.save(entries)
}

func (s *JSONMetadataStore) Prune(_ context.Context, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepSet := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		keepSet[name] = struct{}{}
	}

	entries := s.load()
	var stale []string
	for name := range entries {
		if _, ok := keepSet[name]; !ok {
			stale = append(stale, name)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	sort.Strings(stale)
	for _, name := range stale {
		delete(entries, name)
	}
	if err := s.save(entries); err != nil {
		return 0, err
	}
	return len(stale), nil
}
