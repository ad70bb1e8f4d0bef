// Package metrics exposes the Prometheus instrumentation threaded through
// session.Manager and hashring.Watch: a session-state gauge, a reconnect
// counter, and a hashring-size gauge.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles the gauges and counters this module emits. The zero
// value is not usable; construct with NewCollector.
type Collector struct {
	SessionState     *prometheus.GaugeVec
	SessionReconnects prometheus.Counter
	HashringSize     *prometheus.GaugeVec
}

// NewCollector builds a Collector and registers its metrics with reg. Passing
// a fresh prometheus.NewRegistry() in tests avoids colliding with the global
// default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gozk_coordination",
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (1 if active, 0 otherwise), labeled by state name.",
		}, []string{"state"}),
		SessionReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gozk_coordination",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Number of times the session manager started establishing a new session after its session expired.",
		}),
		HashringSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gozk_coordination",
			Subsystem: "hashring",
			Name:      "size",
			Help:      "Number of occupied positions currently visible on the hash ring, labeled by ring path.",
		}, []string{"path"}),
	}

	if reg != nil {
		reg.MustRegister(c.SessionState, c.SessionReconnects, c.HashringSize)
	}

	return c
}

// SetState records the current session state, zeroing every other known
// state label so dashboards can graph "current state" as a step function.
func (c *Collector) SetState(allStates []string, current string) {
	if c == nil {
		return
	}
	for _, s := range allStates {
		if s == current {
			c.SessionState.WithLabelValues(s).Set(1)
		} else {
			c.SessionState.WithLabelValues(s).Set(0)
		}
	}
}

// IncReconnects increments the reconnect counter.
func (c *Collector) IncReconnects() {
	if c == nil {
		return
	}
	c.SessionReconnects.Inc()
}

// SetHashringSize records the current ring size for path.
func (c *Collector) SetHashringSize(path string, size int) {
	if c == nil {
		return
	}
	c.HashringSize.WithLabelValues(path).Set(float64(size))
}
