package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/safety-dispatch/internal/dispatcher"
	"github.com/notifyhub/safety-dispatch/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	DeliveriesSent   *prometheus.CounterVec
	DeliveriesFailed *prometheus.CounterVec
	DeliveryRetries  *prometheus.CounterVec
	AddressesFixed   *prometheus.CounterVec
	DeliveryLatency  *prometheus.HistogramVec
	Dispatches       *prometheus.CounterVec
	TrackingSessions prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// A custom registry keeps tests isolated from global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeliveriesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_sent_total",
			Help: "Recipients that received a notification.",
		}, []string{"channel"}),

		DeliveriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_failed_total",
			Help: "Recipients that could not be notified, by error kind.",
		}, []string{"channel", "error_kind"}),

		DeliveryRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_retries_total",
			Help: "Relay attempts that were retried after a transport error.",
		}, []string{"channel"}),

		AddressesFixed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "address_corrections_total",
			Help: "Recipient addresses rewritten by typo correction.",
		}, []string{"channel"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_seconds",
			Help:    "Time from first attempt to relay acknowledgement, retries included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatches_total",
			Help: "User actions dispatched, by kind and overall outcome.",
		}, []string{"kind", "outcome"}),

		TrackingSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracking_sessions_active",
			Help: "Live location tracking sessions currently running.",
		}),
	}

	reg.MustRegister(
		m.DeliveriesSent,
		m.DeliveriesFailed,
		m.DeliveryRetries,
		m.AddressesFixed,
		m.DeliveryLatency,
		m.Dispatches,
		m.TrackingSessions,
	)

	return m
}

// DispatcherHooks returns the callbacks expected by dispatcher.WithHooks.
// Keeps the prometheus calls out of the dispatcher package.
func (m *Metrics) DispatcherHooks() dispatcher.Hooks {
	return dispatcher.Hooks{
		OnSent: func(ch domain.Channel, latency time.Duration) {
			m.DeliveriesSent.WithLabelValues(string(ch)).Inc()
			m.DeliveryLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
		},
		OnFailed: func(ch domain.Channel, kind domain.ErrorKind) {
			m.DeliveriesFailed.WithLabelValues(string(ch), string(kind)).Inc()
		},
		OnRetry: func(ch domain.Channel) {
			m.DeliveryRetries.WithLabelValues(string(ch)).Inc()
		},
		OnCorrected: func(ch domain.Channel) {
			m.AddressesFixed.WithLabelValues(string(ch)).Inc()
		},
	}
}

// ObserveDispatch counts one finished user action.
func (m *Metrics) ObserveDispatch(res *domain.AggregateResult) {
	outcome := "failed"
	if res.OverallSuccess {
		outcome = "success"
	}
	m.Dispatches.WithLabelValues(string(res.Kind), outcome).Inc()
}
