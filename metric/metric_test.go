package metric

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	before := testutil.ToFloat64(Operations.WithLabelValues("Smelt", StatusOK))
	Operations.WithLabelValues("Smelt", StatusOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Operations.WithLabelValues("Smelt", StatusOK)))

	err := errors.New("test error")
	CollectError(err)
	assert.Equal(t, float64(1), testutil.ToFloat64(Errors.WithLabelValues(err.Error())))

	MeasureDuration(OperationDuration, time.Now(), "Smelt")
	assert.NoError(t, registerCollectors())
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw, err := PrometheusMiddleware()
	require.NoError(t, err)
	// registering twice reuses the collectors
	_, err = PrometheusMiddleware()
	require.NoError(t, err)

	server := gin.New()
	server.Use(mw)
	server.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, favicon, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
