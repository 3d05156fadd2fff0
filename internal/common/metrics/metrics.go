// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DemoRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_requests_total",
			Help: "Total number of demo requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	DemoRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "demo_request_duration_seconds",
			Help: "Duration of demo request creation in seconds",
		},
		[]string{"outcome"},
	)

	DemoRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demo_requests_in_flight",
			Help: "Number of demo request creations currently in progress",
		},
	)

	ProvisioningCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "provisioning_call_duration_seconds",
			Help: "Duration of external provisioning API calls in seconds",
		},
		[]string{"result"},
	)

	StaleRequestsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "demo_requests_stale_swept_total",
			Help: "Total number of stuck processing rows marked failed by the reconciler",
		},
	)
)
