package middlewares

import (
	"strconv"
	"time"

	"tourbook/cmd/server/handlers/httperr"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// normalizeRoutePath returns the route template to prevent high cardinality
// in metrics labels. Returns the actual path for unmatched routes (404s).
func normalizeRoutePath(c *fiber.Ctx) string {
	if route := c.Route(); route != nil {
		return route.Path // already the template (e.g., "/tours/:id")
	}
	return c.Path()
}

// normalizeStatus buckets status codes: 2xx, 3xx, 4xx, 5xx.
func normalizeStatus(status int) string {
	if status >= 200 && status < 600 {
		return strconv.Itoa(status/100) + "xx"
	}
	return strconv.Itoa(status)
}

// AttachMetrics gives the supplied Fiber app its **own** Prometheus registry
// and wires a /metrics endpoint plus request-timing middleware. Extra
// collectors, such as live subscriber gauges, are registered alongside.
func AttachMetrics(app *fiber.App, extra ...prometheus.Collector) {
	reg := prometheus.NewRegistry()

	reqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	reqTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	reg.MustRegister(reqDuration, reqTotal)
	reg.MustRegister(extra...)

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		dur := time.Since(start).Seconds()

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler has not written the status yet
			e, _ := httperr.Normalize(err)
			status = e.Status
		}

		method := c.Method()
		path := normalizeRoutePath(c)
		label := normalizeStatus(status)

		reqDuration.WithLabelValues(method, path, label).Observe(dur)
		reqTotal.WithLabelValues(method, path, label).Inc()
		return err
	})

	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
}

// SubscriberGauge exposes the number of live review feed connections.
func SubscriberGauge(count func() int) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "review_feed_subscribers",
		Help: "Number of connected review feed websocket clients",
	}, func() float64 { return float64(count()) })
}
