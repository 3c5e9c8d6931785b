// Package api defines the JSON envelope shared by the graph endpoints and the
// client that consumes them.
package api

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// RawResponse is Response with the payload left undecoded.
type RawResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// HasData reports whether the envelope carries a non-null payload.
func (r RawResponse) HasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}

// RespondJSON sends data wrapped in a success envelope.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	response := Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// RespondOK sends an empty success envelope.
func RespondOK(w http.ResponseWriter) {
	RespondJSON(w, http.StatusOK, nil)
}

// RespondError sends a failure envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: message, Code: code})
}
