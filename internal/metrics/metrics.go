package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "movin"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "path"},
	)

	creditsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "consumed_total",
			Help:      "Credits spent on metered actions.",
		},
		[]string{"kind"},
	)

	gateDenials = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "gate_denials_total",
			Help:      "Metered actions refused because the balance was exhausted.",
		},
	)

	creditsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "granted_total",
			Help:      "Credits added or removed by admins.",
		},
		[]string{"direction"},
	)

	registrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "registrations_total",
			Help:      "Handles registered.",
		},
	)

	adminLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "logins_total",
			Help:      "Admin authentication attempts.",
		},
		[]string{"success"},
	)

	aiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "calls_total",
			Help:      "Calls to the generative AI service.",
		},
		[]string{"operation", "success"},
	)

	aiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "call_duration_seconds",
			Help:      "Duration of calls to the generative AI service.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"operation"},
	)

	videoJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "video",
			Name:      "jobs_total",
			Help:      "Video generation jobs by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		creditsConsumed,
		gateDenials,
		creditsGranted,
		registrations,
		adminLogins,
		aiCalls,
		aiDuration,
		videoJobs,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations by route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordCreditConsumed counts one spent credit for a metered action kind.
func RecordCreditConsumed(kind string) {
	creditsConsumed.WithLabelValues(kind).Inc()
}

// RecordGateDenial counts a refused metered action.
func RecordGateDenial() {
	gateDenials.Inc()
}

// RecordCreditsGranted records an admin grant. Negative amounts are counted
// as removals since counters cannot decrease.
func RecordCreditsGranted(amount int) {
	if amount < 0 {
		creditsGranted.WithLabelValues("removed").Add(float64(-amount))
		return
	}
	creditsGranted.WithLabelValues("added").Add(float64(amount))
}

// RecordRegistration counts a new handle.
func RecordRegistration() {
	registrations.Inc()
}

// RecordAdminLogin counts an authentication attempt.
func RecordAdminLogin(success bool) {
	adminLogins.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordAICall records the outcome and duration of a generative AI call.
func RecordAICall(operation string, success bool, duration time.Duration) {
	aiCalls.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	aiDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordVideoJob counts a video job reaching a final status.
func RecordVideoJob(status string) {
	videoJobs.WithLabelValues(status).Inc()
}
