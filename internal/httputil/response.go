// Package httputil holds the JSON response helpers shared by the debug
// handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/spraypaint/internal/monitoring"
)

var logf = monitoring.Component("http")

// Error is the body of every JSON error response.
type Error struct {
	Error string `json:"error"`
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Error{Error: msg})
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf("encode %T response: %v", v, err)
	}
}

// WriteJSONOK writes v with 200 OK.
func WriteJSONOK(w http.ResponseWriter, v any) {
	WriteJSON(w, http.StatusOK, v)
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound writes a 404 with msg. Debug pages use it when their data
// source is not wired.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// InternalServerError writes a 500 with msg.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}
