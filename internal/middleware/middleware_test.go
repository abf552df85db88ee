package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"transaction-summary-api/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echoRouter(limit int64) *gin.Engine {
	r := gin.New()
	r.Use(BodyLimitMiddleware(limit))
	r.POST("/echo", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, string(b))
	})
	return r
}

func TestBodyLimit(t *testing.T) {
	cases := []struct {
		name     string
		limit    int64
		body     string
		chunked  bool
		wantCode int
	}{
		{name: "under limit", limit: 10, body: "hello", wantCode: http.StatusOK},
		{name: "declared over limit", limit: 4, body: "hello", wantCode: http.StatusRequestEntityTooLarge},
		{name: "streamed over limit", limit: 4, body: "hello", chunked: true, wantCode: http.StatusRequestEntityTooLarge},
		{name: "disabled", limit: 0, body: "hello", wantCode: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(tc.body))
			if tc.chunked {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			echoRouter(tc.limit).ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func TestBodyLimit_ErrorBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello"))
	rec := httptest.NewRecorder()
	echoRouter(2).ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"detail":"Request body exceeds 2 bytes"}`, rec.Body.String())
}

func TestMetricsMiddleware(t *testing.T) {
	rec, err := metrics.New()
	require.NoError(t, err)

	r := gin.New()
	r.Use(MetricsMiddleware(rec))
	r.GET("/summary/:user_id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/summary/1", "/summary/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	n, err := testutil.GatherAndCount(rec.Gatherer(), "http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per route and status")
}

func TestMetricsMiddleware_NilRecorder(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware(nil))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
