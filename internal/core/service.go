package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/wabatch/internal/logging"
)

// ContactFile describes a stored contacts file.
type ContactFile struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	ModifiedAt  string    `json:"modified_at"`
	SizeBytes   int64     `json:"size_bytes"`
	SizeLabel   string    `json:"size_label"`
	Modified    time.Time `json:"-"`
}

// ContactStore persists uploaded contacts files and their metadata.
// Names are the stored file names returned by Save.
type ContactStore interface {
	Save(ctx context.Context, filename string, data []byte) (ContactFile, error)
	Info(ctx context.Context, name string) (ContactFile, error)
	Read(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]ContactFile, error)
	Delete(ctx context.Context, name string) error
	WriteTable(ctx context.Context, name string, table *Table) error
	UpdateMetadata(ctx context.Context, name, displayName, description string) error
	Download(ctx context.Context, name string) (path, downloadName string, err error)
	PruneMetadata(ctx context.Context) (int, error)
}

// TemplateStore holds the operator's default message template.
type TemplateStore interface {
	Load() string
	Save(text string) error
}

// Metadata text limits.
const (
	MaxDisplayNameLen = 120
	MaxDescriptionLen = 500
)

var (
	errUploadMissing = NewError(KindValidation, "CONTACTS_UPLOAD_MISSING", http.StatusBadRequest,
		"Choose a contacts file to upload.")
	errInvalidMetadata = NewError(KindValidation, "INVALID_CONTACT_METADATA", http.StatusBadRequest,
		"Contacts file name cannot be empty.")
)

// Service is the application facade used by the HTTP and CLI front ends.
type Service struct {
	store      ContactStore
	templates  TemplateStore
	dispatcher *Dispatcher
	limiter    *SessionLimiter
	preview    PreviewLimits
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store        ContactStore
	Templates    TemplateStore
	Dispatcher   *Dispatcher
	Limiter      *SessionLimiter
	PreviewLimit PreviewLimits
}

// NewService creates a Service. Limiter defaults to a single slot.
func NewService(cfg ServiceConfig) *Service {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewSessionLimiter(DefaultSessionSlots, DefaultSessionWait)
	}
	return &Service{
		store:      cfg.Store,
		templates:  cfg.Templates,
		dispatcher: cfg.Dispatcher,
		limiter:    limiter,
		preview:    cfg.PreviewLimit,
	}
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// UploadContacts validates and stores a contacts file.
func (s *Service) UploadContacts(ctx context.Context, up *Upload) (ContactFile, error) {
	if up == nil || strings.TrimSpace(up.Filename) == "" {
		return ContactFile{}, errUploadMissing
	}
	filename := strings.TrimSpace(up.Filename)
	if _, err := ValidateUpload(filename, up.Data); err != nil {
		return ContactFile{}, err
	}

	file, err := s.store.Save(ctx, filename, up.Data)
	if err != nil {
		return ContactFile{}, err
	}
	logging.FromContext(ctx).Info("contacts file stored", "name", file.Name, "bytes", file.SizeBytes)
	return file, nil
}

// ListContacts returns stored contacts files, newest first.
func (s *Service) ListContacts(ctx context.Context) ([]ContactFile, error) {
	return s.store.List(ctx)
}

// ContactInfo returns a stored file's listing entry.
func (s *Service) ContactInfo(ctx context.Context, name string) (ContactFile, error) {
	return s.store.Info(ctx, name)
}

// PreviewContacts reads a stored file and returns its preview. Pass nil
// limits for the service's configured preview size.
func (s *Service) PreviewContacts(ctx context.Context, name string, limits *PreviewLimits) (ContactFile, Preview, error) {
	file, err := s.store.Info(ctx, name)
	if err != nil {
		return ContactFile{}, Preview{}, err
	}
	table, err := s.readStored(ctx, name)
	if err != nil {
		return ContactFile{}, Preview{}, err
	}

	l := s.preview
	if limits != nil {
		l = *limits
	}
	return file, BuildPreview(table, l), nil
}

func (s *Service) readStored(ctx context.Context, name string) (*Table, error) {
	data, err := s.store.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	table, err := ReadTable(name, data)
	if err != nil {
		return nil, Recode(err, ErrPreviewFailed.Code, ErrPreviewFailed.Message)
	}
	return table, nil
}

// ContentSummary reports the size of saved content.
type ContentSummary struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// SaveContactsContent validates edited content, writes it over the stored
// file and returns the full re-read content.
func (s *Service) SaveContactsContent(ctx context.Context, name string, headers, rows any) (ContentSummary, Preview, error) {
	if _, err := s.store.Info(ctx, name); err != nil {
		return ContentSummary{}, Preview{}, err
	}

	table, err := CleanContent(headers, rows)
	if err != nil {
		return ContentSummary{}, Preview{}, err
	}
	if err := s.store.WriteTable(ctx, name, table); err != nil {
		return ContentSummary{}, Preview{}, err
	}

	saved, err := s.readStored(ctx, name)
	if err != nil {
		return ContentSummary{}, Preview{}, err
	}
	logging.FromContext(ctx).Info("contacts content saved", "name", name,
		"columns", len(table.Headers), "rows", len(table.Rows))

	return ContentSummary{Columns: len(table.Headers), Rows: len(table.Rows)},
		BuildPreview(saved, PreviewLimits{}), nil
}

// UpdateContactsMetadata sets a stored file's display name and description.
// Values are decoded JSON scalars; they are trimmed and cut to length.
func (s *Service) UpdateContactsMetadata(ctx context.Context, name string, displayName, description any) error {
	if _, err := s.store.Info(ctx, name); err != nil {
		return err
	}
	display := SanitizeMetadataText(displayName, MaxDisplayNameLen)
	if display == "" {
		return errInvalidMetadata
	}
	return s.store.UpdateMetadata(ctx, name, display, SanitizeMetadataText(description, MaxDescriptionLen))
}

// SanitizeMetadataText trims v's text form and cuts it to maxLen runes.
func SanitizeMetadataText(v any, maxLen int) string {
	if v == nil {
		return ""
	}
	var text string
	if s, ok := v.(string); ok {
		text = strings.TrimSpace(s)
	} else {
		text = CellText(v)
	}
	if r := []rune(text); len(r) > maxLen {
		return string(r[:maxLen])
	}
	return text
}

// DeleteContacts removes a stored file and its metadata.
func (s *Service) DeleteContacts(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("contacts file deleted", "name", name)
	return nil
}

// ContactsDownload returns the on-disk path and the attachment name for a stored file.
func (s *Service) ContactsDownload(ctx context.Context, name string) (string, string, error) {
	return s.store.Download(ctx, name)
}

// MessageTemplate returns the default message template.
func (s *Service) MessageTemplate() string {
	return s.templates.Load()
}

// SaveMessageTemplate replaces the default message template.
func (s *Service) SaveMessageTemplate(text string) error {
	return s.templates.Save(text)
}

// SendRequest is one send from the UI or CLI. Exactly one target is used:
// an uploaded contacts file, else a stored one, else Phone.
type SendRequest struct {
	Phone            string
	Message          string
	Media            *Media
	Contacts         *Upload
	ExistingContacts string
}

// SendResult describes a finished send.
type SendResult struct {
	Mode    string       `json:"mode"`
	Message string       `json:"message"`
	Target  string       `json:"target,omitempty"`
	Batch   *BatchResult `json:"batch,omitempty"`
}

// Send validates req, takes the backend session and runs a batch or single send.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	phone := strings.TrimSpace(req.Phone)
	message := strings.TrimSpace(req.Message)
	existing := strings.TrimSpace(req.ExistingContacts)
	hasUpload := req.Contacts != nil && req.Contacts.Filename != ""

	if !hasUpload && existing == "" && phone == "" {
		return nil, ErrMissingTarget
	}
	if message == "" && req.Media == nil {
		return nil, ErrMissingContent
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if !hasUpload && existing == "" {
		to, err := s.dispatcher.SendSingle(ctx, phone, message, req.Media)
		if err != nil {
			return nil, err
		}
		verb := "Text"
		if req.Media != nil {
			verb = "Media"
		}
		return &SendResult{
			Mode:    "single",
			Target:  to,
			Message: fmt.Sprintf("%s sent to %s. You are logged out; a new QR code will be required next send.", verb, to),
		}, nil
	}

	filename, data, err := s.batchSource(ctx, req.Contacts, existing)
	if err != nil {
		return nil, err
	}

	result, err := s.dispatcher.SendBatch(ctx, BatchRequest{
		Filename: filename,
		Data:     data,
		Template: message,
		Media:    req.Media,
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Batch sent successfully to %d row(s). You are logged out; a new QR code will be required next send.",
		result.RowsProcessed)
	if result.LogoutWarning != "" {
		msg = fmt.Sprintf("Batch sent successfully to %d row(s), but automatic logout failed. Restart the app before the next batch.",
			result.RowsProcessed)
	}
	return &SendResult{Mode: "batch", Message: msg, Batch: result}, nil
}

// batchSource stores an uploaded file, or loads a stored one.
func (s *Service) batchSource(ctx context.Context, up *Upload, existing string) (string, []byte, error) {
	if up != nil && up.Filename != "" {
		filename := strings.TrimSpace(up.Filename)
		if filename == "" || !IsContactsFilename(filename) {
			return "", nil, ErrInvalidContactsFile
		}
		if len(up.Data) == 0 {
			return "", nil, ErrContactsEmpty
		}
		if _, err := s.store.Save(ctx, filename, up.Data); err != nil {
			return "", nil, err
		}
		return filename, up.Data, nil
	}

	data, err := s.store.Read(ctx, existing)
	if err != nil {
		return "", nil, err
	}
	if len(data) == 0 {
		return "", nil, ErrContactsEmpty
	}
	return existing, data, nil
}

// SessionStatus reports whether a send currently holds the backend session.
func (s *Service) SessionStatus() SessionLimiterStatus {
	return s.limiter.Status()
}

// WaitForSends blocks until the active send finishes or ctx ends.
func (s *Service) WaitForSends(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
