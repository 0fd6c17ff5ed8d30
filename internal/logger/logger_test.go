package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	httpx "github.com/wolfeidau/sopdesk/internal/http"
)

func TestNewRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	handler := httpx.RequestIDMiddleware()(
		httpx.ClientIPMiddleware()(
			NewRequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				zerolog.Ctx(r.Context()).Info().Msg("inside")
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("short and stout"))
			})),
		),
	)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(httpx.RequestIDHeader, "req-1")
	r.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), r)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inside, done map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.NoError(t, json.Unmarshal(lines[1], &done))

	require.Equal(t, "req-1", inside["request_id"])
	require.Equal(t, "/health", inside["path"])
	require.Equal(t, "10.0.0.1", inside["addr"])

	require.Equal(t, "http request", done["message"])
	require.EqualValues(t, http.StatusTeapot, done["status"])
	require.EqualValues(t, 15, done["bytes"])
}

func TestSetup(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, Setup(false).GetLevel())
	require.Equal(t, zerolog.DebugLevel, Setup(true).GetLevel())
}
