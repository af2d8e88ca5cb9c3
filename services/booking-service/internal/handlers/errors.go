package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/tenantbook/libs/httpx"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/booking"
)

// statusFor maps engine errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, booking.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorPayload struct {
	Error   string               `json:"error"`
	Details []booking.FieldError `json:"details,omitempty"`
}

func payloadFor(err error, status int) errorPayload {
	if status == http.StatusInternalServerError {
		return errorPayload{Error: "internal error"}
	}
	if status == http.StatusServiceUnavailable {
		return errorPayload{Error: "temporarily unavailable, retry later"}
	}
	p := errorPayload{Error: err.Error()}
	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		p.Error = "validation failed"
		p.Details = ve.Fields
	}
	return p
}

// writeEngineError reports an error returned by the booking engine.
func writeEngineError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "status", status, "err", err)
	}
	httpx.WriteJSON(w, status, payloadFor(err, status))
}

// writeInputError reports malformed input rejected before the engine ran.
func writeInputError(w http.ResponseWriter, err error) {
	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		httpx.WriteErrorDetails(w, http.StatusBadRequest, "invalid request", ve.Fields)
		return
	}
	httpx.WriteError(w, http.StatusBadRequest, err.Error())
}
