// Package metrics wires the ambient Prometheus counters/gauges the
// datastore and persistence layers emit into, adapted from the
// reference corpus's promauto-based metrics package.
//
// Unlike the reference corpus's package-level vars on the default
// registry, each Datastore gets its own prometheus.Registry: the corpus
// assumes one process hosts one server, but an embedded library may have
// many Datastore instances (including many in one test binary), and
// promauto panics on duplicate registration against a shared registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds one Datastore's counters and gauges.
type Metrics struct {
	Registry *prometheus.Registry

	InsertsTotal     prometheus.Counter
	UpdatesTotal     prometheus.Counter
	RemovesTotal     prometheus.Counter
	FindsTotal       prometheus.Counter
	TTLEvictedTotal  prometheus.Counter
	CompactionsTotal prometheus.Counter
	CorruptRecords   prometheus.Counter

	DocumentCount  prometheus.Gauge
	DatafileBytes  prometheus.Gauge
	IndexCount     prometheus.Gauge
}

// New registers a fresh set of metrics against their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	fac := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		InsertsTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "nedb_inserts_total",
			Help: "Total number of documents inserted.",
		}),
		UpdatesTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "nedb_updates_total",
			Help: "Total number of documents updated.",
		}),
		RemovesTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "nedb_removes_total",
			Help: "Total number of documents removed.",
		}),
		FindsTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "nedb_finds_total",
			Help: "Total number of find/findOne queries executed.",
		}),
		TTLEvictedTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "nedb_ttl_evicted_total",
			Help: "Total number of documents evicted by a TTL index.",
		}),
		CompactionsTotal: fac.NewCounter(prometheus.CounterOpts{
			Name: "nedb_compactions_total",
			Help: "Total number of datafile compactions performed.",
		}),
		CorruptRecords: fac.NewCounter(prometheus.CounterOpts{
			Name: "nedb_corrupt_records_total",
			Help: "Total number of datafile lines that failed to parse during load.",
		}),
		DocumentCount: fac.NewGauge(prometheus.GaugeOpts{
			Name: "nedb_documents",
			Help: "Current number of live documents.",
		}),
		DatafileBytes: fac.NewGauge(prometheus.GaugeOpts{
			Name: "nedb_datafile_bytes",
			Help: "Size in bytes of the on-disk datafile after the last compaction.",
		}),
		IndexCount: fac.NewGauge(prometheus.GaugeOpts{
			Name: "nedb_indexes",
			Help: "Current number of indexes, including the mandatory _id index.",
		}),
	}
}
