package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's prometheus collectors. All methods are safe to
// call on a nil *Metrics so that packages can be used without metrics wired.
type Metrics struct {
	registry *prometheus.Registry

	FeedRefreshes   *prometheus.CounterVec
	CachedIncidents prometheus.Gauge
	NewIncidents    prometheus.Counter
	InstanceStates  *prometheus.GaugeVec
	DetectionFrames *prometheus.CounterVec
	AlertsSent      *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "refreshes_total",
				Help:      "Incident feed refreshes by result",
			},
			[]string{"result"},
		),
		CachedIncidents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "cached_incidents",
				Help:      "Number of incidents currently held in the feed cache",
			},
		),
		NewIncidents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "new_incidents_total",
				Help:      "Incidents prepended to the feed cache",
			},
		),
		InstanceStates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "instances",
				Name:      "state",
				Help:      "Number of tracked vision instances per lifecycle state",
			},
			[]string{"state"},
		),
		DetectionFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "detection",
				Name:      "frames_total",
				Help:      "Detection stream frames by result",
			},
			[]string{"result"},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerter",
				Name:      "alerts_total",
				Help:      "Incident alerts by severity and result",
			},
			[]string{"severity", "result"},
		),
	}

	m.registry.MustRegister(
		m.FeedRefreshes,
		m.CachedIncidents,
		m.NewIncidents,
		m.InstanceStates,
		m.DetectionFrames,
		m.AlertsSent,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRefresh(ok bool, cached, added int) {
	if m == nil {
		return
	}

	if !ok {
		m.FeedRefreshes.WithLabelValues("failure").Inc()
		return
	}

	m.FeedRefreshes.WithLabelValues("success").Inc()
	m.CachedIncidents.Set(float64(cached))
	m.NewIncidents.Add(float64(added))
}

func (m *Metrics) SetInstanceStates(counts map[string]int) {
	if m == nil {
		return
	}

	m.InstanceStates.Reset()

	for state, n := range counts {
		m.InstanceStates.WithLabelValues(state).Set(float64(n))
	}
}

func (m *Metrics) ObserveFrame(result string) {
	if m == nil {
		return
	}

	m.DetectionFrames.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAlert(severity string, ok bool) {
	if m == nil {
		return
	}

	result := "sent"

	if !ok {
		result = "failed"
	}

	m.AlertsSent.WithLabelValues(severity, result).Inc()
}
