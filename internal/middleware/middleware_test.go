package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newRouter(pm *PrometheusMiddleware, rl *RequestLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Handler(), pm.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusSwitchingProtocols) })
	return r
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPrometheusMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPrometheusMiddleware("test", reg, "/ws")
	r := newRouter(pm, NewRequestLogger(logging.NewConsoleLogger("api", &bytes.Buffer{})))

	serve(r, "/ok")
	serve(r, "/missing")
	serve(r, "/ws")

	assert.Equal(t, float64(1), testutil.ToFloat64(pm.reqErrors.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.upgrades.WithLabelValues("/ws")))
	assert.Equal(t, float64(0), testutil.ToFloat64(pm.reqInflight))
	// /ok и /missing; /ws не попадает в гистограмму
	assert.Equal(t, 2, testutil.CollectAndCount(pm.reqDuration))
}

func TestRequestLoggerSetsTraceID(t *testing.T) {
	var buf bytes.Buffer
	pm := NewPrometheusMiddleware("test", prometheus.NewRegistry())
	r := newRouter(pm, NewRequestLogger(logging.NewConsoleLogger("api", &buf)))

	rec := serve(r, "/ok")
	id := rec.Header().Get("X-Trace-Id")
	assert.Len(t, id, 36)
	assert.Contains(t, buf.String(), "GET /ok 200")
	assert.Contains(t, buf.String(), id)
}
