package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/wabatch/internal/core"
)

// sendResponse is the body of a successful send.
type sendResponse struct {
	OK bool `json:"ok"`
	*core.SendResult
}

// handleSend sends a message to one phone number or to every row of a
// contacts file. Form fields: phone, message, media, contacts_file and
// existing_contacts_file. A batch keeps the request open until it finishes.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err)
		return
	}

	req := core.SendRequest{
		Phone:            r.FormValue("phone"),
		Message:          r.FormValue("message"),
		ExistingContacts: r.FormValue("existing_contacts_file"),
	}

	media, err := readFormFile(r, "media")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if media != nil {
		req.Media = &core.Media{
			Filename: media.Filename,
			MimeType: media.ContentType,
			Data:     media.Data,
		}
	}

	contacts, err := readFormFile(r, "contacts_file")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if contacts != nil {
		req.Contacts = &core.Upload{Filename: strings.TrimSpace(contacts.Filename), Data: contacts.Data}
	}

	result, err := s.service.Send(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{OK: true, SendResult: result})
}
