package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records request count, latency and in-flight gauges on reg.
// Must be called once per registry.
func Metrics(reg prometheus.Registerer) echo.MiddlewareFunc {
	f := promauto.With(reg)
	requests := f.NewCounterVec(prometheus.CounterOpts{
		Name: "ordrebook_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"route", "method", "class"})
	duration := f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ordrebook_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"route", "method", "class"})
	inFlight := f.NewGauge(prometheus.GaugeOpts{
		Name: "ordrebook_http_in_flight_requests",
		Help: "Current number of in-flight HTTP requests",
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			route, method := routeLabel(c), c.Request().Method
			class := statusClass(c.Response().Status)
			requests.WithLabelValues(route, method, class).Inc()
			duration.WithLabelValues(route, method, class).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// routeLabel prefers the registered route template to keep cardinality low.
func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
