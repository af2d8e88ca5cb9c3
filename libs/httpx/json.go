package httpx

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteErrorDetails adds a machine readable payload, e.g. field errors.
func WriteErrorDetails(w http.ResponseWriter, status int, msg string, details any) {
	WriteJSON(w, status, errorBody{Error: msg, Details: details})
}
