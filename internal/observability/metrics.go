package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discuss_http_requests_total",
			Help: "Total number of HTTP requests processed by the discussion service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discuss_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "discuss_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discuss_ws_events_total",
			Help: "Total number of websocket lifecycle and protocol events.",
		},
		[]string{"event"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discuss_messages_sent_total",
			Help: "Messages accepted by the send pipeline, by delivery path.",
		},
		[]string{"path"},
	)
	broadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discuss_broadcasts_total",
			Help: "Room fan-out emissions, by room kind.",
		},
		[]string{"kind"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discuss_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		messagesSentTotal,
		broadcastsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() { wsActiveConnections.Inc() }
func DecWSActive() { wsActiveConnections.Dec() }

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncMessageSent(path string) {
	messagesSentTotal.WithLabelValues(path).Inc()
}

func IncBroadcast(kind string) {
	broadcastsTotal.WithLabelValues(kind).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
