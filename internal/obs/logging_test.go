package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestInstrumentAccessLog(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(Instrument{Logger: newLogger(&buf, "json")}.Handler)
	r.Post("/api/v1/carts/{id}/items", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/c-42/items", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "/api/v1/carts/{id}/items", entry["route"])
	require.Equal(t, "c-42", entry["cart_id"])
	require.Equal(t, float64(http.StatusCreated), entry["status"])
	require.Equal(t, "203.0.113.9", entry["client_ip"])
	require.Equal(t, float64(2), entry["bytes"])
}

func TestInstrumentLogsPanicsAsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	handler := Instrument{Logger: newLogger(&buf, "json")}.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	require.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
	require.Equal(t, float64(http.StatusInternalServerError), entry["status"])
	require.Equal(t, "/api/v1/products", entry["route"])
}
