package store

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/qindex/internal/ir"
)

// Metrics are the Prometheus collectors updated by the store.
type Metrics struct {
	EntitiesIndexed *prometheus.CounterVec
	Batches         *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	QueriesCompiled prometheus.Counter
}

// NewMetrics creates the store collectors and registers them on reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntitiesIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qindex",
			Name:      "entities_indexed_total",
			Help:      "Entity states applied by IndexEntities, by status.",
		}, []string{"status"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qindex",
			Name:      "index_batches_total",
			Help:      "IndexEntities calls, by result.",
		}, []string{"result"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qindex",
			Name:      "index_batch_duration_seconds",
			Help:      "Duration of IndexEntities calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueriesCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qindex",
			Name:      "queries_compiled_total",
			Help:      "Queries compiled by ConstructQuery.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.EntitiesIndexed, m.Batches, m.BatchDuration, m.QueriesCompiled)
	}
	return m
}

func (m *Metrics) batch(result string, seconds float64, counts map[ir.EntityStatus]int) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(result).Inc()
	m.BatchDuration.Observe(seconds)
	if result != "committed" {
		return
	}
	for status, n := range counts {
		m.EntitiesIndexed.WithLabelValues(status.String()).Add(float64(n))
	}
}

func (m *Metrics) compiled() {
	if m == nil {
		return
	}
	m.QueriesCompiled.Inc()
}
