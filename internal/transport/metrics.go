package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects transport counters. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	retries  prometheus.Counter
	timeouts prometheus.Counter
	strays   prometheus.Counter
	latency  prometheus.Histogram
}

// NewMetrics creates the transport metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipmi",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "IPMI requests sent, by interface and result.",
		}, []string{"interface", "result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipmi",
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Attempts repeated after a timeout.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipmi",
			Subsystem: "transport",
			Name:      "attempt_timeouts_total",
			Help:      "Attempts that received no matching response in time.",
		}),
		strays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipmi",
			Subsystem: "transport",
			Name:      "stray_datagrams_total",
			Help:      "Received frames that did not answer the outstanding request.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ipmi",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Time from first send to matched response.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	reg.MustRegister(m.requests, m.retries, m.timeouts, m.strays, m.latency)
	return m
}

func (m *Metrics) observe(iface string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if _, ok := err.(*TimeoutError); ok {
			result = "timeout"
		}
	}
	m.requests.WithLabelValues(iface, result).Inc()
	m.latency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) retry() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.timeouts.Inc()
	}
}

func (m *Metrics) stray() {
	if m != nil {
		m.strays.Inc()
	}
}
