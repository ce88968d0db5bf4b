package web

// errors.go turns handler errors into responses.
//
// Every error is converted with core.ToError, so domain errors keep their
// code and status and anything else is mapped by pattern. The technical
// error is logged with the request id; the client gets the user-facing
// message as JSON, or as an alert fragment for HTMX requests.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/logging"
	"github.com/JonMunkholm/wabatch/internal/web/views"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Code    string `json:"error_code"`
	Error   string `json:"error"`
	Action  string `json:"action,omitempty"`
	Details string `json:"details,omitempty"`
}

// respondError logs err and writes it in the format the client expects.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := core.ToError(err)
	status := appErr.HTTPStatus()

	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", appErr.Code,
		"error", err.Error(),
	}
	var batchErr *core.BatchError
	if errors.As(err, &batchErr) {
		attrs = append(attrs,
			"batch_id", batchErr.BatchID,
			"rows_processed", batchErr.RowsProcessed,
			"failed_line", batchErr.FailedLine,
		)
	}

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if isHTMX(r) {
		renderErrorPartial(w, r, appErr, status)
		return
	}
	writeJSON(w, status, ErrorResponse{
		Code:    appErr.Code,
		Error:   appErr.Message,
		Action:  appErr.Action,
		Details: appErr.Details,
	})
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, appErr *core.Error, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.ErrorAlert(appErr.Message, appErr.Action, appErr.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error alert", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
