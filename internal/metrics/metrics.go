// Package metrics exposes Prometheus instruments for authorization
// decisions.  Instruments are registered on an injected registry so tests
// can use a private one.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verdict sources.
const (
	SourceCache = "cache"
	SourceStore = "store"
	SourceError = "error"
)

// Decisions counts verdicts by source and outcome and times store
// resolutions.
type Decisions struct {
	verdicts *prometheus.CounterVec
	resolve  prometheus.Histogram
}

// NewDecisions registers the decision instruments on reg.
func NewDecisions(reg prometheus.Registerer) (*Decisions, error) {
	d := &Decisions{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authz_permission_verdicts_total",
			Help: "Permission verdicts by source (cache, store, error) and outcome.",
		}, []string{"source", "allowed"}),
		resolve: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authz_permission_resolve_duration_seconds",
			Help:    "Time spent resolving a verdict from the store.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{d.verdicts, d.resolve} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Verdict records one decision.  A nil receiver is a no-op.
func (d *Decisions) Verdict(source string, allowed bool) {
	if d == nil {
		return
	}
	d.verdicts.WithLabelValues(source, strconv.FormatBool(allowed)).Inc()
}

// ObserveResolve records the duration of a store resolution.
func (d *Decisions) ObserveResolve(took time.Duration) {
	if d == nil {
		return
	}
	d.resolve.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
