// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ChatMessagesTotal tracks inbound chat messages by transport and kind.
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Inbound chat messages",
		},
		[]string{"transport", "kind"},
	)

	// LeadsSubmittedTotal tracks lead submissions to the CRM.
	LeadsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_submitted_total",
			Help: "Lead submissions by CRM, capture mode and outcome",
		},
		[]string{"crm", "mode", "status"},
	)

	// CRMRequestDuration tracks create-record round trips.
	CRMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_request_duration_seconds",
			Help:    "CRM create-record duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"crm", "status"},
	)

	// TokenRefreshTotal tracks Zoho access-token refresh attempts.
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoho_token_refresh_total",
			Help: "Zoho access token refresh attempts",
		},
		[]string{"status"},
	)

	// LeadEventsPublishedTotal tracks lead events written to NATS.
	LeadEventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_events_published_total",
			Help: "Lead events published to the event stream",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordChatMessage counts one inbound chat message.
func RecordChatMessage(transport, kind string) {
	ChatMessagesTotal.WithLabelValues(transport, kind).Inc()
}

// RecordCRMRequest records the outcome of one create-record call.
func RecordCRMRequest(crm string, success bool, duration float64) {
	CRMRequestDuration.WithLabelValues(crm, outcome(success)).Observe(duration)
}

// RecordLeadSubmission counts one lead handed to the router.
func RecordLeadSubmission(crm, mode string, success bool) {
	LeadsSubmittedTotal.WithLabelValues(crm, mode, outcome(success)).Inc()
}

// RecordTokenRefresh counts one token refresh attempt.
func RecordTokenRefresh(success bool) {
	TokenRefreshTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordLeadEvent counts one lead event publish attempt.
func RecordLeadEvent(success bool) {
	LeadEventsPublishedTotal.WithLabelValues(outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
