package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

func TestDecodeJSONValid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"6f1c1c43-1d1a-4a39-9a0c-3c1f3b0c7a01","quantity":2}`))
	var p samplePayload
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &p))
	require.Equal(t, 2, p.Quantity)
}

func TestDecodeJSONValidationDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"nope","quantity":0}`))
	var p samplePayload
	err := DecodeJSON(httptest.NewRecorder(), req, &p)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid uuid", details["samplePayload.productId"])
	require.Equal(t, "must be at least 1", details["samplePayload.quantity"])
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"x","extra":true}`))
	var p samplePayload
	err := DecodeJSON(httptest.NewRecorder(), req, &p)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, zerolog.Nop(), Unprocessable("UNKNOWN_DESTINATION", "unknown destination", errors.New("x")).WithDetails(map[string]string{"destination": "mars"}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "UNKNOWN_DESTINATION", body.Error.Code)

	rec = httptest.NewRecorder()
	WriteError(rec, zerolog.Nop(), errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "boom")
}
