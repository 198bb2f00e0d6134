package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/contextkeys"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/logging"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// envelope is the top-level shape of every JSON response.
type envelope map[string]interface{}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// OK writes a 200 response carrying "ok": true plus the given fields.
func OK(w http.ResponseWriter, fields envelope) {
	body := envelope{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, http.StatusOK, body)
}

// Error writes {"ok": false, "error": CODE}, using the AppError status when
// available. Anything else is logged and reported as INTERNAL_ERROR.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		appErr = domain.ErrInternal(domain.CodeInternal, err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		logger := log.Logger
		if r != nil {
			logger = *logging.FromContext(r.Context())
		}
		logger.Error().Err(err).Str("code", appErr.Code).Msg("Request failed")
	}
	JSON(w, appErr.Status, envelope{"ok": false, "error": appErr.Code})
}

// DecodeJSON decodes a JSON request body into v. An empty body leaves v
// untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrBadRequest(domain.CodeInvalidBody)
	}
	return nil
}

// userID returns the authenticated user id set by the auth middleware.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(contextkeys.UserID).(string)
	return id
}
