// Package metrics exports command log activity as Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/nodegraph/internal/history"
)

const (
	namespace = "nodegraph"
	subsystem = "history"

	scopeRoot      = "root"
	scopeAggregate = "aggregate"
)

// Collector counts history events. It implements history.Hooks.
type Collector struct {
	rootName string

	records   *prometheus.CounterVec
	undos     prometheus.Counter
	redos     prometheus.Counter
	truncated *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

var _ history.Hooks = (*Collector)(nil)

// New creates a collector for a manager whose root log is named rootName and
// registers it with reg. A nil reg skips registration.
func New(reg prometheus.Registerer, rootName string) (*Collector, error) {
	c := &Collector{
		rootName: rootName,
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_total",
			Help:      "Operations recorded, by root or aggregate log.",
		}, []string{"scope"}),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "undos_total",
			Help:      "Root entries undone.",
		}),
		redos: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "redos_total",
			Help:      "Root entries redone.",
		}),
		truncated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "truncated_total",
			Help:      "Redoable entries discarded by a new record.",
		}, []string{"scope"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evictions_total",
			Help:      "Oldest entries dropped to stay within capacity.",
		}, []string{"scope"}),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{c.records, c.undos, c.redos, c.truncated, c.evictions} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

// scope maps a log name to a bounded label value.
func (c *Collector) scope(log string) string {
	if log == c.rootName {
		return scopeRoot
	}
	return scopeAggregate
}

// Recorded implements history.Hooks.
func (c *Collector) Recorded(log string) {
	c.records.WithLabelValues(c.scope(log)).Inc()
}

// Undone implements history.Hooks.
func (c *Collector) Undone(string) {
	c.undos.Inc()
}

// Redone implements history.Hooks.
func (c *Collector) Redone(string) {
	c.redos.Inc()
}

// Truncated implements history.Hooks.
func (c *Collector) Truncated(log string, dropped int) {
	c.truncated.WithLabelValues(c.scope(log)).Add(float64(dropped))
}

// Evicted implements history.Hooks.
func (c *Collector) Evicted(log string, evicted int) {
	c.evictions.WithLabelValues(c.scope(log)).Add(float64(evicted))
}
