package shared

import (
	"encoding/json"
	"net/http"
)

// Envelope is the JSON response shape shared by every API endpoint.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Redirect   string `json:"redirect,omitempty"`
	Data       any    `json:"data,omitempty"`
	SelfAction bool   `json:"selfAction,omitempty"`
}

// RespondJSON writes v as JSON with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondSuccess writes a success envelope.
func RespondSuccess(w http.ResponseWriter, status int, env Envelope) {
	env.Success = true
	RespondJSON(w, status, env)
}

// RespondError writes an error envelope.
func RespondError(w http.ResponseWriter, status int, msg string) {
	RespondJSON(w, status, Envelope{Error: msg})
}

// RespondErrorRedirect writes an error envelope carrying a client-side redirect hint.
func RespondErrorRedirect(w http.ResponseWriter, status int, msg, redirect string) {
	RespondJSON(w, status, Envelope{Error: msg, Redirect: redirect})
}
