package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/animus-labs/trialflow/internal/platform/requestid"
)

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code string) {
	id, _ := requestid.FromContext(r.Context())
	WriteJSON(w, status, ErrorBody{Error: code, RequestID: id})
}
