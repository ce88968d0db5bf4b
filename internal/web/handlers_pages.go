package web

import (
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/logging"
	"github.com/JonMunkholm/wabatch/internal/web/views"
)

// render writes an HTML component with the given status.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}

// handleIndex renders the send form. ?existing_contacts_file preselects a
// stored file when it still exists.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.ListContacts(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn("list contacts for index", "error", err)
	}

	var selected string
	if want := strings.TrimSpace(r.URL.Query().Get("existing_contacts_file")); want != "" {
		for _, f := range files {
			if f.Name == want {
				selected = want
				break
			}
		}
	}

	render(w, r, http.StatusOK, views.Index(views.IndexData{
		CountryCode:     s.cfg.Messaging.DefaultCountryCode,
		MessageTemplate: s.service.MessageTemplate(),
		Files:           files,
		Selected:        selected,
	}))
}

// handleContactDetails renders a stored file in full. Failures render the
// same page with the error message and the error's status.
func (s *Server) handleContactDetails(w http.ResponseWriter, r *http.Request) {
	unlimited := core.PreviewLimits{}
	file, preview, err := s.service.PreviewContacts(r.Context(), chi.URLParam(r, "name"), &unlimited)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Could not load this contacts file."
		if appErr, ok := core.AsError(err); ok {
			status = appErr.HTTPStatus()
			message = appErr.Message
		}
		logging.FromContext(r.Context()).Warn("contact details unavailable", "status", status, "error", err)
		render(w, r, status, views.ContactDetails(views.ContactDetailsData{LoadError: message}))
		return
	}

	render(w, r, http.StatusOK, views.ContactDetails(views.ContactDetailsData{File: &file, Preview: preview}))
}
