package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// maxFormMemory is how much of a multipart body is held in memory; larger
// parts spill to temporary files.
const maxFormMemory = 32 << 20

// parseForm reads a multipart or urlencoded body capped at the configured
// upload size. Oversized bodies fail with an error that maps to
// MEDIA_TOO_LARGE.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// formFile is an uploaded file read into memory.
type formFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// readFormFile returns the named upload, or nil when the field is absent or
// has no file name.
func readFormFile(r *http.Request, field string) (*formFile, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		return nil, nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &formFile{
		Filename:    header.Filename,
		ContentType: contentType(header),
		Data:        data,
	}, nil
}

func contentType(h *multipart.FileHeader) string {
	ct := h.Header.Get("Content-Type")
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}

// decodeObject reads a JSON object body. Anything that is not an object
// decodes to an empty map, so handlers report missing fields instead of
// parse errors.
func (s *Server) decodeObject(w http.ResponseWriter, r *http.Request) map[string]any {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		return map[string]any{}
	}
	return payload
}
