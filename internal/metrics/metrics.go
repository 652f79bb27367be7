package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_http_requests_total",
			Help: "HTTP requests handled, by route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_appointment_transitions_total",
			Help: "Persisted appointment lifecycle transitions",
		},
		[]string{"event"},
	)

	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_appointment_rejections_total",
			Help: "Lifecycle operations rejected, by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_notifications_total",
			Help: "Notification deliveries attempted, by event and outcome",
		},
		[]string{"event", "status"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clinic_notifier_breaker_open",
			Help: "1 while the named notifier circuit breaker is open or half-open",
		},
		[]string{"breaker"},
	)

	LapsedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_appointments_lapsed_total",
			Help: "Pending appointments cancelled because the doctor never responded",
		},
	)
)

func ObserveTransition(event string) {
	TransitionsTotal.WithLabelValues(event).Inc()
}

func ObserveRejection(operation, kind string) {
	RejectionsTotal.WithLabelValues(operation, kind).Inc()
}

func ObserveNotification(event string, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	NotificationsTotal.WithLabelValues(event, status).Inc()
}

func ObserveLapsed(n int) {
	LapsedTotal.Add(float64(n))
}

func ObserveBreakerState(name, state string) {
	v := 1.0
	if state == "closed" {
		v = 0
	}
	BreakerState.WithLabelValues(name).Set(v)
}
