// Package prom exposes session metrics through a Prometheus registry.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bellsbank/bellsbank/internal/observability/metrics"
	"github.com/bellsbank/bellsbank/internal/observability/statsd"
)

// Collector records session metrics as Prometheus series.
// It implements statsd.Sink so emitters stay sink-agnostic; unknown metric names are ignored.
type Collector struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	authTotal       *prometheus.CounterVec
	authDuration    *prometheus.HistogramVec
	profileTotal    *prometheus.CounterVec
	sessionActive   prometheus.Gauge
	gatherer        prometheus.Gatherer
}

var _ statsd.Sink = (*Collector)(nil)

var (
	refreshLabels = []string{"trigger", "result", "error_class"}
	authLabels    = []string{"operation", "result", "error_code"}
	profileLabels = []string{"result", "error_class"}
)

// NewCollector creates a Collector and registers its series with reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bellsbank_session_refresh_total",
			Help: "Session refresh attempts by trigger and outcome.",
		}, refreshLabels),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bellsbank_session_refresh_duration_seconds",
			Help:    "Latency of provider refresh calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bellsbank_auth_operation_total",
			Help: "Foreground sign-in, sign-up and sign-out operations by outcome.",
		}, authLabels),
		authDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bellsbank_auth_operation_duration_seconds",
			Help:    "Latency of foreground auth operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		profileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bellsbank_profile_load_total",
			Help: "Profile fetches by outcome.",
		}, profileLabels),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bellsbank_session_active",
			Help: "1 while the store holds a session, 0 otherwise.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.refreshTotal,
		c.refreshDuration,
		c.authTotal,
		c.authDuration,
		c.profileTotal,
		c.sessionActive,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) Count(name string, value int64, tags map[string]string) {
	var vec *prometheus.CounterVec
	var keys []string
	switch name {
	case metrics.NameRefresh:
		vec, keys = c.refreshTotal, refreshLabels
	case metrics.NameAuthOperation:
		vec, keys = c.authTotal, authLabels
	case metrics.NameProfileLoad:
		vec, keys = c.profileTotal, profileLabels
	default:
		return
	}
	vec.With(labels(keys, tags)).Add(float64(value))
}

func (c *Collector) Gauge(name string, value float64, _ map[string]string) {
	if name == metrics.NameSessionActive {
		c.sessionActive.Set(value)
	}
}

func (c *Collector) Timing(name string, value time.Duration, tags map[string]string) {
	switch name {
	case metrics.NameRefreshDuration:
		c.refreshDuration.With(labels([]string{"trigger"}, tags)).Observe(value.Seconds())
	case metrics.NameAuthDuration:
		c.authDuration.With(labels([]string{"operation"}, tags)).Observe(value.Seconds())
	}
}

// labels projects tags onto exactly the label set a vector was declared with.
func labels(keys []string, tags map[string]string) prometheus.Labels {
	out := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		out[k] = tags[k]
	}
	return out
}
