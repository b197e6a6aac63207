package monitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/skorokhod/furniture_shop/internal/apperr"
)

func sample(status int, d time.Duration) Sample {
	return Sample{Method: "GET", Path: "/x", Status: status, Duration: d, At: time.Now()}
}

func TestCollectorWindowTrim(t *testing.T) {
	c := NewCollector(3)

	for i := 0; i < 5; i++ {
		c.Record(Sample{Status: 200 + i, At: time.Now()})
	}

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	// Oldest two were dropped; the rest come back oldest-first.
	require.Equal(t, 202, snap[0].Status)
	require.Equal(t, 203, snap[1].Status)
	require.Equal(t, 204, snap[2].Status)

	st := c.Stats()
	require.Equal(t, uint64(5), st.Recorded)
	require.Equal(t, 3, st.Buffered)
}

func TestCollectorStats(t *testing.T) {
	c := NewCollector(10)

	st := c.Stats()
	require.Zero(t, st.Recorded)
	require.Zero(t, st.Buffered)

	c.Record(sample(200, 10*time.Millisecond))
	c.Record(sample(200, 30*time.Millisecond))
	c.Record(sample(500, 20*time.Millisecond))

	st = c.Stats()
	require.Equal(t, uint64(3), st.Recorded)
	require.Equal(t, 3, st.Buffered)
	require.InDelta(t, 20.0, st.AvgMillis, 0.001)
	require.InDelta(t, 30.0, st.MaxMillis, 0.001)
	require.Equal(t, 2, st.Statuses[200])
	require.Equal(t, 1, st.Statuses[500])
}

func TestCollectorDefaultCapacity(t *testing.T) {
	c := NewCollector(0)
	for i := 0; i < defaultCapacity+5; i++ {
		c.Record(Sample{Status: 200})
	}
	require.Len(t, c.Snapshot(), defaultCapacity)
	require.Equal(t, uint64(defaultCapacity+5), c.Stats().Recorded)
}

func TestMiddlewareRecords(t *testing.T) {
	c := NewCollector(10)
	e := echo.New()
	e.Use(c.Middleware())
	e.GET("/ping", func(ec echo.Context) error { return ec.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, http.MethodGet, snap[0].Method)
	require.Equal(t, "/ping", snap[0].Path)
	require.Equal(t, http.StatusOK, snap[0].Status)
}

// Errors bubble up past the collector before the boundary handler commits a
// status; the sample must still carry the real one.
func TestMiddlewareRecordsErrorStatus(t *testing.T) {
	c := NewCollector(10)
	e := echo.New()
	e.Use(c.Middleware())
	e.GET("/missing", func(ec echo.Context) error {
		return apperr.New(apperr.KindNotFound, "nothing here")
	})
	e.GET("/legacy", func(ec echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "clash")
	})

	for _, path := range []string{"/missing", "/legacy"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, http.StatusNotFound, snap[0].Status)
	require.Equal(t, http.StatusConflict, snap[1].Status)

	st := c.Stats()
	require.Equal(t, 1, st.Statuses[http.StatusNotFound])
	require.Equal(t, 1, st.Statuses[http.StatusConflict])
}
