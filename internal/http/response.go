package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to write response")
	}
}

// WriteError writes {"detail": detail} with status.
func WriteError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	WriteJSON(w, r, status, ErrorBody{Detail: detail})
}
