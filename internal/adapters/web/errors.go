package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"kirana-voice/internal/core"
)

type errorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

// writeError writes the `{error, statusCode}` JSON error shape.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, StatusCode: status})
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeCoreError maps store sentinels to HTTP statuses. Anything unmapped is
// a 500 with a generic message; the root cause goes to the log only.
func writeCoreError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrCustomerNotFound),
		errors.Is(err, core.ErrProductNotFound),
		errors.Is(err, core.ErrInvoiceNotFound),
		errors.Is(err, core.ErrReminderNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrConflict),
		errors.Is(err, core.ErrAlreadyCancelled):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, core.ErrEmptyInvoice),
		errors.Is(err, core.ErrInsufficientStock),
		errors.Is(err, core.ErrNothingToRemind):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON decodes the request body into v, writing the error response
// itself on failure. 413 when RequestBodyLimit tripped, 400 otherwise.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
