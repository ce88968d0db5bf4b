package web

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/wabatch/internal/core"
)

// fileRef is the short file description returned with previews.
type fileRef struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (s *Server) handleContactsHistory(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.ListContacts(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if files == nil {
		files = []core.ContactFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "files": files})
}

// handleContactsUpload stores a contacts file after checking it can be read
// and has a NUMBERS column.
func (s *Server) handleContactsUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	upload, err := readFormFile(r, "contacts_file")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var up *core.Upload
	if upload != nil {
		up = &core.Upload{Filename: upload.Filename, Data: upload.Data}
	}

	file, err := s.service.UploadContacts(r.Context(), up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Contacts file uploaded and saved.",
		"file":    file,
	})
}

// handleContactsPreview returns the first rows and columns of a stored file.
func (s *Server) handleContactsPreview(w http.ResponseWriter, r *http.Request) {
	file, preview, err := s.service.PreviewContacts(r.Context(), chi.URLParam(r, "name"), nil)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"file": fileRef{
			Name:        file.Name,
			DisplayName: file.DisplayName,
			Description: file.Description,
		},
		"preview": preview,
	})
}

// handleContactsContent replaces a stored file's content with the edited
// {headers, rows} and returns the saved table in full.
func (s *Server) handleContactsContent(w http.ResponseWriter, r *http.Request) {
	payload := s.decodeObject(w, r)
	headers, ok := payload["headers"]
	if !ok {
		headers = []any{}
	}
	rows, ok := payload["rows"]
	if !ok {
		rows = []any{}
	}

	summary, preview, err := s.service.SaveContactsContent(r.Context(), chi.URLParam(r, "name"), headers, rows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": summary, "preview": preview})
}

func (s *Server) handleContactsMetadata(w http.ResponseWriter, r *http.Request) {
	payload := s.decodeObject(w, r)

	err := s.service.UpdateContactsMetadata(r.Context(), chi.URLParam(r, "name"),
		payload["display_name"], payload["description"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleContactsDownload sends the stored file as an attachment named after
// its display name.
func (s *Server) handleContactsDownload(w http.ResponseWriter, r *http.Request) {
	path, downloadName, err := s.service.ContactsDownload(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	http.ServeFile(w, r, path)
}

func (s *Server) handleContactsDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteContacts(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Contacts file deleted."})
}
