package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorBody is the payload under "error" in failed responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data writes {"data": v}.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, dataEnvelope{Data: v})
}

// JSONError writes {"error": {...}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, errorEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// WriteError renders an AppError as-is. Anything else becomes an opaque 500,
// and server-side failures are logged.
func WriteError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		logger.Error().Err(err).Msg("unhandled error")
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	status, code, message := appErr.HTTPStatus, appErr.Code, appErr.Message
	if status == 0 {
		status = http.StatusBadRequest
	}
	if code == "" {
		code = "BAD_REQUEST"
	}
	if message == "" {
		message = appErr.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", code).Msg("request failed")
	}
	JSONError(w, status, code, message, appErr.Details)
}
