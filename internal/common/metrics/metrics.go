// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_gateway_requests_total",
			Help: "Total number of backend requests by method and outcome class",
		},
		[]string{"method", "outcome"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "portal_gateway_request_duration_seconds",
			Help: "Duration of backend requests in seconds",
		},
		[]string{"method"},
	)

	GatewayTokenRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_gateway_token_rotations_total",
			Help: "Number of responses that carried a rotated session token",
		},
	)

	GatewayUnauthorized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_gateway_unauthorized_total",
			Help: "Number of 401 responses that cleared the session",
		},
	)

	EnrollmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_enrollment_transitions_total",
			Help: "Enrollment state machine transitions",
		},
		[]string{"from", "to"},
	)
)
