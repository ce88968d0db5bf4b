package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/logging"
)

// Contact file errors.
var (
	ErrInvalidReference = core.NewError(core.KindValidation, "INVALID_CONTACT_REFERENCE",
		http.StatusBadRequest, "Invalid contacts file reference.")
	ErrFileNotFound = core.NewError(core.KindNotFound, "CONTACT_FILE_NOT_FOUND",
		http.StatusNotFound, "Selected contacts file was not found.")
	ErrSaveFailed = core.NewError(core.KindInternal, "CONTACTS_SAVE_FAILED",
		http.StatusInternalServerError, "Could not save the uploaded contacts file.")
	ErrDeleteFailed = core.NewError(core.KindInternal, "CONTACTS_DELETE_FAILED",
		http.StatusInternalServerError, "Could not delete contacts file.")
	ErrContentSaveFailed = core.NewError(core.KindInternal, "CONTACTS_CONTENT_SAVE_FAILED",
		http.StatusInternalServerError, "Could not save contacts file content.")
)

// DefaultUploadName replaces an upload name that sanitizes to nothing.
const DefaultUploadName = "contacts.xlsx"

const modifiedLayout = "2006-01-02 15:04:05"

// FileStore keeps contacts files in one directory. Stored names are the
// sanitized upload name behind a microsecond timestamp, so listing order and
// uniqueness follow upload time. It implements core.ContactStore.
type FileStore struct {
	dir  string
	meta MetadataStore
	now  func() time.Time
}

// NewFileStore creates dir if needed and stores metadata in meta.
func NewFileStore(dir string, meta MetadataStore) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create contacts dir: %w", err)
	}
	return &FileStore{dir: dir, meta: meta, now: time.Now}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string { return s.dir }

func storedName(t time.Time, safe string) string {
	return fmt.Sprintf("%s_%06d_%s", t.Format("20060102_150405"), t.Nanosecond()/1000, safe)
}

// Save writes data under a new stored name and records the upload's own
// name as the display name.
func (s *FileStore) Save(ctx context.Context, filename string, data []byte) (core.ContactFile, error) {
	original := baseName(strings.TrimSpace(filename))
	safe := SecureFilename(original)
	if safe == "" {
		safe = DefaultUploadName
	}
	name := storedName(s.now(), safe)

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return core.ContactFile{}, ErrSaveFailed.Wrap(err)
	}
	if err := s.meta.Set(ctx, name, original, ""); err != nil {
		return core.ContactFile{}, err
	}
	return s.Info(ctx, name)
}

// resolve maps a stored name to its path. The name must already be a
// secure file name with a contacts extension.
func (s *FileStore) resolve(name string) (string, os.FileInfo, error) {
	if name == "" || SecureFilename(baseName(name)) != name || !core.IsContactsFilename(name) {
		return "", nil, ErrInvalidReference.WithDetails(name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, ErrFileNotFound.WithDetails(name)
	}
	return path, info, nil
}

func (s *FileStore) describe(name string, info os.FileInfo, meta Metadata) core.ContactFile {
	display := meta.DisplayName
	if display == "" {
		display = fallbackDisplayName(name)
	}
	modified := info.ModTime()
	return core.ContactFile{
		Name:        name,
		DisplayName: display,
		Description: meta.Description,
		ModifiedAt:  modified.Local().Format(modifiedLayout),
		SizeBytes:   info.Size(),
		SizeLabel:   FormatSize(info.Size()),
		Modified:    modified,
	}
}

func (s *FileStore) Info(ctx context.Context, name string) (core.ContactFile, error) {
	_, info, err := s.resolve(name)
	if err != nil {
		return core.ContactFile{}, err
	}
	meta, _, err := s.meta.Get(ctx, name)
	if err != nil {
		return core.ContactFile{}, err
	}
	return s.describe(name, info, meta), nil
}

func (s *FileStore) Read(_ context.Context, name string) ([]byte, error) {
	path, _, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ErrPreviewFailed.Wrap(err)
	}
	return data, nil
}

type diskEntry struct {
	name string
	info os.FileInfo
}

// scan lists stored contacts files on disk, newest first.
func (s *FileStore) scan() ([]diskEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read contacts dir: %w", err)
	}

	var out []diskEntry
	for _, e := range entries {
		if !e.Type().IsRegular() || !core.IsContactsFilename(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, diskEntry{name: e.Name(), info: info})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].info.ModTime().After(out[j].info.ModTime())
	})
	return out, nil
}

// List returns stored files newest first and drops metadata for files that
// no longer exist.
func (s *FileStore) List(ctx context.Context) ([]core.ContactFile, error) {
	disk, err := s.scan()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(disk))
	for i, e := range disk {
		names[i] = e.name
	}
	if pruned, err := s.meta.Prune(ctx, names); err != nil {
		logging.FromContext(ctx).Warn("prune contacts metadata failed", "error", err)
	} else if pruned > 0 {
		logging.FromContext(ctx).Info("pruned stale contacts metadata", "entries", pruned)
	}

	meta, err := s.meta.All(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]core.ContactFile, 0, len(disk))
	for _, e := range disk {
		files = append(files, s.describe(e.name, e.info, meta[e.name]))
	}
	return files, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	path, _, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return ErrDeleteFailed.Wrap(err)
	}
	return s.meta.Delete(ctx, name)
}

// WriteTable replaces a stored file's content: CSV files are rewritten
// whole, workbooks have their active sheet replaced.
func (s *FileStore) WriteTable(_ context.Context, name string, table *core.Table) error {
	path, info, err := s.resolve(name)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(name), ".csv") {
		data, err := core.EncodeCSV(table)
		if err != nil {
			return ErrContentSaveFailed.Wrap(err)
		}
		if err := os.WriteFile(path, data, info.Mode().Perm()); err != nil {
			return ErrContentSaveFailed.Wrap(err)
		}
		return nil
	}

	if err := core.RewriteSpreadsheet(path, table); err != nil {
		return ErrContentSaveFailed.Wrap(err)
	}
	return nil
}

func (s *FileStore) UpdateMetadata(ctx context.Context, name, displayName, description string) error {
	if _, _, err := s.resolve(name); err != nil {
		return err
	}
	return s.meta.Set(ctx, name, displayName, description)
}

// Download returns the file path and the attachment name derived from the
// display name.
func (s *FileStore) Download(ctx context.Context, name string) (string, string, error) {
	path, _, err := s.resolve(name)
	if err != nil {
		return "", "", err
	}
	meta, _, err := s.meta.Get(ctx, name)
	if err != nil {
		return "", "", err
	}
	display := meta.DisplayName
	if display == "" {
		display = fallbackDisplayName(name)
	}
	return path, downloadName(name, display), nil
}

// PruneMetadata drops metadata entries whose file is gone.
func (s *FileStore) PruneMetadata(ctx context.Context) (int, error) {
	disk, err := s.scan()
	if err != nil {
		return 0, err
	}
	names := make([]string, len(disk))
	for i, e := range disk {
		names[i] = e.name
	}
	return s.meta.Prune(ctx, names)
}

// FormatSize renders a byte count as B, KB, MB or GB with one decimal above
// bytes.
func FormatSize(n int64) string {
	size := float64(max(n, 0))
	units := []string{"B", "KB", "MB", "GB"}
	for i, unit := range units {
		if size < 1024 || i == len(units)-1 {
			if unit == "B" {
				return fmt.Sprintf("%d B", int64(size))
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return "0 B"
}
