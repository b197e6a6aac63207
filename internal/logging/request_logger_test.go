package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header http.Header) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(middleware.RequestID(), RequestLogger(base))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	e.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestRequestLoggerUsesClientRequestID(t *testing.T) {
	line := serve(t, http.Header{echo.HeaderXRequestID: []string{"client-id-1"}})
	require.Equal(t, "client-id-1", line["request_id"])
	require.Equal(t, "request completed", line["msg"])
	require.EqualValues(t, http.StatusOK, line["status"])
}

// With no client id, the id the RequestID middleware generated must still
// reach the log line.
func TestRequestLoggerUsesGeneratedRequestID(t *testing.T) {
	line := serve(t, nil)
	rid, ok := line["request_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, rid)
}
