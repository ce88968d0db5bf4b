package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody matches the JSON error shape of the API handlers.
type errorBody struct {
	OK      bool   `json:"ok"`
	Code    string `json:"error_code"`
	Message string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: message})
}
