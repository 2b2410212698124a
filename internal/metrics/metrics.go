// Package metrics records run outcomes and pushes them to a Prometheus
// Pushgateway when one is configured.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"dealops/internal/batch"
)

const job = "dealops"

// Metrics holds the collectors of one CLI invocation. Each invocation pushes
// its own registry, grouped by command.
type Metrics struct {
	registry *prometheus.Registry

	// RowsTotal counts rows by command and outcome (updated, skipped, failed)
	RowsTotal *prometheus.CounterVec
	// OwnerCoverage is the share of deals that carry an owner
	OwnerCoverage prometheus.Gauge
	// RunDuration is the wall time of the last run in seconds
	RunDuration *prometheus.GaugeVec
	// LastSuccess is the unix time of the last run that finished without error
	LastSuccess *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dealops",
				Subsystem: "batch",
				Name:      "rows_total",
				Help:      "Rows processed by outcome",
			},
			[]string{"command", "outcome"},
		),
		OwnerCoverage: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "dealops",
				Subsystem: "deals",
				Name:      "owner_coverage_ratio",
				Help:      "Share of deals with a denormalized owner",
			},
		),
		RunDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dealops",
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Duration of the last run in seconds",
			},
			[]string{"command"},
		),
		LastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "dealops",
				Subsystem: "run",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
			[]string{"command"},
		),
	}
}

// Registry exposes the underlying registry for tests and custom gatherers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResult adds a batch result to the row counters.
func (m *Metrics) ObserveResult(command string, r batch.Result) {
	m.RowsTotal.WithLabelValues(command, "updated").Add(float64(r.Updated))
	m.RowsTotal.WithLabelValues(command, "skipped").Add(float64(r.Skipped))
	m.RowsTotal.WithLabelValues(command, "failed").Add(float64(r.Failed))
}

// ObserveRun records how long a run took and, when it succeeded, when.
func (m *Metrics) ObserveRun(command string, started time.Time, err error) {
	m.RunDuration.WithLabelValues(command).Set(time.Since(started).Seconds())
	if err == nil {
		m.LastSuccess.WithLabelValues(command).SetToCurrentTime()
	}
}

// Push sends the registry to the Pushgateway at url. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, command string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("command", command).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
