package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bellsbank/bellsbank/config"
	"github.com/bellsbank/bellsbank/internal/observability/prom"
	"github.com/bellsbank/bellsbank/internal/observability/statsd"
)

const metricsPrefix = "bellsbank"

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Sink fans out to every enabled backend.
	Sink       statsd.Sink
	StatsD     *statsd.Client
	Prometheus *prom.Collector
}

// BuildObservability creates the configured metrics sinks.
func BuildObservability(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*ObservabilityContainer, error) {
	c := &ObservabilityContainer{}
	var fan statsd.Fanout

	if cfg.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.StatsdAddress,
			Prefix:  metricsPrefix,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create statsd client: %w", err)
		}
		c.StatsD = client
		fan = append(fan, client)
		if logger != nil {
			logger.Info("statsd metrics enabled", "addr", cfg.StatsdAddress)
		}
	}

	if cfg.PrometheusEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		c.Prometheus = prom.NewCollector(reg)
		fan = append(fan, c.Prometheus)
	}

	if len(fan) > 0 {
		c.Sink = fan
	}
	return c, nil
}

// Close releases the StatsD connection.
func (c *ObservabilityContainer) Close() error {
	if c == nil {
		return nil
	}
	return c.StatsD.Close()
}
