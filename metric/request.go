package metric

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	favicon = "/favicon.ico"
)

// Prometheus holds the HTTP request collectors of the node API
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
}

// registerVec registers c, returning the already registered collector when
// one with the same description exists
func registerVec(c prometheus.Collector) (prometheus.Collector, error) {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}

// NewPrometheus creates the request collectors, labeled by status code,
// method and route
func NewPrometheus() (*Prometheus, error) {
	labels := []string{"code", "method", "path"}
	reqCnt, err := registerVec(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceAPI,
			Name:      "requests_total",
			Help:      "Number of HTTP requests served by the node API",
		}, labels))
	if err != nil {
		return nil, err
	}
	reqDur, err := registerVec(prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceAPI,
			Name:      "request_duration_seconds",
			Help:      "Latency of the node API requests in seconds",
		}, labels))
	if err != nil {
		return nil, err
	}
	return &Prometheus{
		reqCnt: reqCnt.(*prometheus.CounterVec),
		reqDur: reqDur.(*prometheus.HistogramVec),
	}, nil
}

// PrometheusMiddleware returns a gin middleware that measures every request
func PrometheusMiddleware() (gin.HandlerFunc, error) {
	p, err := NewPrometheus()
	if err != nil {
		return nil, err
	}
	return p.Middleware(), nil
}

// Middleware measures the requests, except favicon ones
func (p *Prometheus) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == favicon {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		p.reqDur.WithLabelValues(status, c.Request.Method, path).Observe(elapsed)
		p.reqCnt.WithLabelValues(status, c.Request.Method, path).Inc()
	}
}
