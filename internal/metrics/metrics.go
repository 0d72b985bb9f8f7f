// Package metrics holds the prometheus collectors of the bot. A nil *Metrics
// is valid and records nothing, so components can be built without metrics
// in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeFailed       = "failed"
	OutcomeInconsistent = "inconsistent"
	OutcomeRejected     = "rejected"
)

type Metrics struct {
	Events        *prometheus.CounterVec
	Workflows     *prometheus.CounterVec
	CacheRebuilds *prometheus.CounterVec
	CacheEntries  prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplierbot_events_total",
			Help: "Incoming chat events by kind",
		}, []string{"kind"}), // kind: text, command, image, choice

		Workflows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplierbot_workflows_total",
			Help: "Finished workflows by name and outcome",
		}, []string{"workflow", "outcome"}),

		CacheRebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "supplierbot_cache_rebuilds_total",
			Help: "Catalog cache rebuilds by outcome",
		}, []string{"outcome"}),

		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "supplierbot_cache_entries",
			Help: "Entries in the current catalog snapshot",
		}),
	}
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Workflow(name, outcome string) {
	if m == nil {
		return
	}
	m.Workflows.WithLabelValues(name, outcome).Inc()
}

func (m *Metrics) Rebuild(ok bool, entries int) {
	if m == nil {
		return
	}
	if !ok {
		m.CacheRebuilds.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	m.CacheRebuilds.WithLabelValues(OutcomeOK).Inc()
	m.CacheEntries.Set(float64(entries))
}
