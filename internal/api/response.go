package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	remerrors "github.com/remedyops/remedy/internal/errors"
)

// apiError is the wire shape for error responses.
type apiError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Status    int    `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{
		Error:     message,
		Code:      code,
		Status:    status,
		Timestamp: time.Now().Unix(),
	})
}

// writeDomainError maps domain errors onto HTTP statuses. Unrecognized
// errors become 500s with the raw error kept server-side.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound   *remerrors.NotFoundError
		transition *remerrors.StateTransitionError
		tokenErr   *remerrors.TokenError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, remerrors.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &tokenErr):
		writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, remerrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		log.Error().Err(err).Msg("Request handler error")
		writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}
