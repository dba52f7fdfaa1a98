// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusOf maps an error to the HTTP status RespondError would send.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, internalShared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrState),
		errors.Is(err, internalShared.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, internalShared.ErrTenantMissing),
		errors.Is(err, internalShared.ErrTenantInvalid), errors.Is(err, internalShared.ErrActorInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	switch status {
	case http.StatusNotFound:
		Problem(w, status, "Not Found", err.Error())
	case http.StatusBadRequest:
		Problem(w, status, "Validation Failed", err.Error())
	case http.StatusConflict:
		title := "Conflict"
		if errors.Is(err, shared.ErrState) {
			title = "Invalid State"
		}
		Problem(w, status, title, err.Error())
	case http.StatusUnauthorized:
		Problem(w, status, "Unauthorized", err.Error())
	case http.StatusServiceUnavailable:
		if shared.IsRetryable(err) {
			w.Header().Set("Retry-After", "1")
		}
		Problem(w, status, "Store Unavailable", "")
	default:
		Problem(w, status, "Internal Error", "")
	}
}
