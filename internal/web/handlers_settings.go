package web

import (
	"net/http"

	"github.com/JonMunkholm/wabatch/internal/core"
)

var errInvalidTemplate = core.NewError(core.KindValidation, "VALIDATION_ERROR",
	http.StatusBadRequest, "Message template must be text.")

// handleAuthStart asks the backend to begin a WhatsApp login and relays its
// reply (status, QR code) unchanged.
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	data, err := s.auth.AuthStart(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	data, err := s.auth.AuthStatus(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleGetMessageTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "template": s.service.MessageTemplate()})
}

// handlePutMessageTemplate replaces the default template with {"template": "..."}.
func (s *Server) handlePutMessageTemplate(w http.ResponseWriter, r *http.Request) {
	text, ok := s.decodeObject(w, r)["template"].(string)
	if !ok {
		s.respondError(w, r, errInvalidTemplate)
		return
	}
	if err := s.service.SaveMessageTemplate(text); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"message":  "Default message template saved.",
		"template": s.service.MessageTemplate(),
	})
}
