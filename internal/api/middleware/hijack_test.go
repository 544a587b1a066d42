package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/api/middleware"
)

// Websocket upgrades hijack the underlying connection, so every
// response-wrapping middleware must keep http.Hijacker reachable.
func TestResponseWrappers_PreserveHijacker(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Hijacker); !ok {
			http.Error(w, "hijacker lost", http.StatusInternalServerError)
			return
		}
		if _, ok := w.(http.Flusher); !ok {
			http.Error(w, "flusher lost", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	var handler http.Handler = probe
	handler = middleware.Logger(zerolog.Nop())(handler)
	handler = metrics.Middleware()(handler)
	handler = middleware.Tracing("test")(handler)

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}
