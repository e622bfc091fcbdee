package xmap

// metrics.go mirrors the teacher's pkg/metrics.go: a thin sink interface so
// that xmap can be used with or without Prometheus, and the hot path never
// pays for a metric update when the caller did not ask for one.
//
// Unlike the teacher (which is sharded and labels every metric by shard),
// a Map owns a single chain of cores, so these are plain unlabeled
// counters/gauges. What's interesting operationally is not per-shard
// skew but the rehash/migration machinery, so the metric set here leans
// toward that: how many cores exist in the chain, how many frozen slots
// have been carried over to a successor, and how many rehash passes have
// been run over a core.
//
// © 2025 xmap authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is the internal seam between Map/Core and whichever backend
// is active. It is not exposed outside the package.
type metricsSink interface {
	incGet(hit bool)
	incPut()
	incRemove()
	incRehash()
	incHelpedMigration()
	setCoresAlive(n int)
}

/* ---------------- no-op implementation ---------------- */

type noopMetrics struct{}

func (noopMetrics) incGet(bool)         {}
func (noopMetrics) incPut()             {}
func (noopMetrics) incRemove()          {}
func (noopMetrics) incRehash()          {}
func (noopMetrics) incHelpedMigration() {}
func (noopMetrics) setCoresAlive(int)   {}

/* ---------------- Prometheus implementation ---------------- */

type promMetrics struct {
	hits             prometheus.Counter
	misses           prometheus.Counter
	puts             prometheus.Counter
	removes          prometheus.Counter
	rehashes         prometheus.Counter
	helpedMigrations prometheus.Counter
	coresAlive       prometheus.Gauge
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmap",
			Name:      "get_hits_total",
			Help:      "Number of Get calls that found a live value.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmap",
			Name:      "get_misses_total",
			Help:      "Number of Get calls that found no live value.",
		}),
		puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmap",
			Name:      "puts_total",
			Help:      "Number of completed Put calls.",
		}),
		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmap",
			Name:      "removes_total",
			Help:      "Number of completed Remove calls.",
		}),
		rehashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmap",
			Name:      "rehashes_total",
			Help:      "Number of rehash passes run over a core; concurrent helpers on the same core each count.",
		}),
		helpedMigrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmap",
			Name:      "helped_migrations_total",
			Help:      "Number of per-slot migrations completed by a thread other than the one that froze the slot, or by the rehash scan itself.",
		}),
		coresAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xmap",
			Name:      "cores_alive",
			Help:      "Number of cores currently linked in the forward chain.",
		}),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.puts, pm.removes, pm.rehashes, pm.helpedMigrations, pm.coresAlive)
	pm.coresAlive.Set(1)
	return pm
}

func (m *promMetrics) incGet(hit bool) {
	if hit {
		m.hits.Inc()
		return
	}
	m.misses.Inc()
}
func (m *promMetrics) incPut()             { m.puts.Inc() }
func (m *promMetrics) incRemove()          { m.removes.Inc() }
func (m *promMetrics) incRehash()          { m.rehashes.Inc() }
func (m *promMetrics) incHelpedMigration() { m.helpedMigrations.Inc() }
func (m *promMetrics) setCoresAlive(n int) { m.coresAlive.Set(float64(n)) }

// newMetricsSink decides which implementation to use. reg == nil disables
// metrics entirely, matching the teacher's newMetricsSink.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
