package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Detection metrics
	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "self_healing_detections_total",
			Help: "Total number of abnormal resources detected by kind and verdict",
		},
		[]string{"kind", "verdict"},
	)

	DebounceDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "self_healing_debounce_denied_total",
			Help: "Total number of remediations suppressed by the cooldown window",
		},
		[]string{"kind"},
	)

	DebounceKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "self_healing_debounce_keys",
			Help: "Number of keys currently held in the cooldown ledger",
		},
	)

	// Remediation metrics
	RemediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "self_healing_remediations_total",
			Help: "Total number of remediation actions by action and result",
		},
		[]string{"action", "result"},
	)

	RollbackDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "self_healing_rollback_duration_seconds",
			Help:    "Release rollback duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Reconciler metrics
	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "self_healing_cycle_duration_seconds",
			Help:    "Time taken to complete a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"loop"},
	)

	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "self_healing_cycles_total",
			Help: "Total number of completed reconciliation cycles",
		},
		[]string{"loop"},
	)

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "self_healing_fetch_errors_total",
			Help: "Total number of cycles skipped because the snapshot could not be fetched",
		},
		[]string{"loop"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "self_healing_notifications_total",
			Help: "Total number of notification deliveries by result",
		},
		[]string{"result"},
	)

	EventsDropped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "self_healing_events_dropped",
			Help: "Events discarded because a notification buffer was full",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(DetectionsTotal)
	prometheus.MustRegister(DebounceDeniedTotal)
	prometheus.MustRegister(DebounceKeys)
	prometheus.MustRegister(RemediationsTotal)
	prometheus.MustRegister(RollbackDuration)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(FetchErrorsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(EventsDropped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
