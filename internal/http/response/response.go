// Package response writes the gateway's JSON envelope.
package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every lead endpoint response.
type Envelope struct {
	OK          bool                `json:"ok"`
	Error       string              `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes {"ok":true}.
func OK(w http.ResponseWriter) {
	JSON(w, http.StatusOK, Envelope{OK: true})
}

// Error writes {"ok":false,"error":message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Error: message})
}

// Invalid writes a 400 carrying per-field messages.
func Invalid(w http.ResponseWriter, message string, fieldErrors map[string][]string) {
	JSON(w, http.StatusBadRequest, Envelope{Error: message, FieldErrors: fieldErrors})
}
