// Package prom exports engine events as Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cacheflow"
)

// Hooks counts engine events. Every series is labelled by namespace;
// degraded operations also carry the backend op name.
type Hooks struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	degraded    *prometheus.CounterVec
	undecodable prometheus.Counter
	violations  *prometheus.CounterVec
}

var _ cacheflow.Hooks = (*Hooks)(nil)

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer, constLabels prometheus.Labels) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   "cacheflow",
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}
	}
	h := &Hooks{
		hits:        prometheus.NewCounterVec(opts("hits_total", "Keys served from the cache"), []string{"namespace"}),
		misses:      prometheus.NewCounterVec(opts("misses_total", "Keys not found in the cache"), []string{"namespace"}),
		degraded:    prometheus.NewCounterVec(opts("degraded_total", "Backend operations that failed and were contained"), []string{"op", "namespace"}),
		undecodable: prometheus.NewCounter(opts("undecodable_total", "Cached entries that could not be decoded")),
		violations:  prometheus.NewCounterVec(opts("contract_violations_total", "Producer results that did not match their keys"), []string{"namespace"}),
	}
	for _, c := range []prometheus.Collector{h.hits, h.misses, h.degraded, h.undecodable, h.violations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) Hit(ns string, n int)  { h.hits.WithLabelValues(ns).Add(float64(n)) }
func (h *Hooks) Miss(ns string, n int) { h.misses.WithLabelValues(ns).Add(float64(n)) }

func (h *Hooks) Degraded(op, ns string, _ error) { h.degraded.WithLabelValues(op, ns).Inc() }

// Undecodable is not labelled: storage keys are unbounded.
func (h *Hooks) Undecodable(string, error) { h.undecodable.Inc() }

func (h *Hooks) ContractViolation(ns string, _ error) { h.violations.WithLabelValues(ns).Inc() }
