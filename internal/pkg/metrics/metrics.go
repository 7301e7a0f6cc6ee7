package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "axdash"

var (
	// HTTPRequestsTotal counts handled requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "The total number of handled HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes request latency by route
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "The request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// WebhookEventsReceived counts accepted deliveries by event type
	WebhookEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_received_total",
		Help:      "The total number of webhook deliveries by type and outcome",
	}, []string{"type", "outcome"})

	// WebhookEventsProcessed counts processing attempts by type and outcome
	WebhookEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_processed_total",
		Help:      "The total number of webhook processing attempts",
	}, []string{"type", "outcome"})

	// WebhookDeadLettered counts events that exhausted their retries
	WebhookDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_dead_lettered_total",
		Help:      "The total number of webhook events moved to the dead-letter list",
	})

	// ProviderRequestsTotal counts outbound CRM API calls
	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "The total number of CRM API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// TokenRefreshTotal counts OAuth refresh attempts
	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_token_refresh_total",
		Help:      "The total number of OAuth token refreshes",
	}, []string{"status"})

	// ReportsTotal counts report computations by report and outcome
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "The total number of computed reports",
	}, []string{"report", "outcome"})

	// QueueJobs tracks the job queue by state
	QueueJobs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_jobs",
		Help:      "Current number of queued jobs by state",
	}, []string{"state"})
)

// Handler exposes the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Outcome maps an error to the outcome label used across counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
