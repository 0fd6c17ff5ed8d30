package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/sopdesk/internal/auth"
	httpx "github.com/wolfeidau/sopdesk/internal/http"
	"github.com/wolfeidau/sopdesk/internal/registration"
	"github.com/wolfeidau/sopdesk/internal/store"
)

// detailError carries the message shown to API clients alongside the cause.
type detailError struct {
	detail string
	err    error
}

func (e *detailError) Error() string { return e.detail + ": " + e.err.Error() }
func (e *detailError) Unwrap() error { return e.err }

func withDetail(err error, format string, args ...any) error {
	return &detailError{detail: fmt.Sprintf(format, args...), err: err}
}

func forbidden(detail string) error {
	return withDetail(auth.ErrForbidden, "%s", detail)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrConflict), errors.Is(err, registration.ErrExhausted):
		return http.StatusConflict
	case errors.Is(err, store.ErrValidation), errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var defaultDetails = map[int]string{
	http.StatusNotFound:            "Not found",
	http.StatusForbidden:           "Not enough permissions",
	http.StatusConflict:            "Already exists",
	http.StatusUnprocessableEntity: "Validation error",
	http.StatusUnauthorized:        "Invalid credentials",
}

// writeError logs err and writes the matching {"detail": ...} response.
// Internal errors are never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		httpx.WriteError(w, r, status, "Internal server error")
		return
	}

	logger.Debug().Err(err).Int("status", status).Msg("request rejected")

	detail := defaultDetails[status]
	var de *detailError
	switch {
	case errors.As(err, &de):
		detail = de.detail
	case status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		detail = err.Error()
	}

	if status == http.StatusUnauthorized {
		auth.Unauthorized(w, r, detail)
		return
	}

	httpx.WriteError(w, r, status, detail)
}
