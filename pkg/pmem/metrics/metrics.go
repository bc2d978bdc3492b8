// Package metrics exposes prometheus counters and gauges for pool and
// tree activity. pmem and tree call the Inc/Set helpers below at their
// instrumentation points; the metrics themselves are registered lazily
// by the first call to Registry, and until then every helper is a no-op,
// so a process that never references Registry pays nothing.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once
	reg  *prometheus.Registry

	// Allocations counts successful pmem.Allocate calls, labeled by the
	// registered type id they were tagged with.
	Allocations *prometheus.CounterVec

	// RegistrySize reports the current number of open pools in the
	// process-wide pmem registry.
	RegistrySize prometheus.Gauge

	// TreeInserts counts successful tree.Object.AddNode calls.
	TreeInserts prometheus.Counter

	// TreeLookups counts tree.Object.Lookup calls.
	TreeLookups prometheus.Counter
)

// Registry returns the lazily-initialized prometheus registry backing
// this package's metrics, creating and registering them on first call.
func Registry() *prometheus.Registry {
	once.Do(func() {
		reg = prometheus.NewRegistry()

		Allocations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pmemtree",
			Name:      "allocations_total",
			Help:      "Total successful pmem.Allocate calls by type id.",
		}, []string{"type_id"})

		RegistrySize = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pmemtree",
			Name:      "open_pools",
			Help:      "Number of pools currently open in this process.",
		})

		TreeInserts = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pmemtree",
			Name:      "tree_inserts_total",
			Help:      "Total successful tree AddNode calls.",
		})

		TreeLookups = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pmemtree",
			Name:      "tree_lookups_total",
			Help:      "Total tree Lookup calls.",
		})

		reg.MustRegister(Allocations, RegistrySize, TreeInserts, TreeLookups)
	})
	return reg
}

// IncAllocation records one successful allocation of the given type id.
// It is a no-op until the first call to Registry, so instrumentation
// stays free for callers who never opt in.
func IncAllocation(typeID string) {
	if Allocations != nil {
		Allocations.WithLabelValues(typeID).Inc()
	}
}

// SetRegistrySize records the current number of open pools.
func SetRegistrySize(n int) {
	if RegistrySize != nil {
		RegistrySize.Set(float64(n))
	}
}

// IncTreeInsert records one successful tree insert.
func IncTreeInsert() {
	if TreeInserts != nil {
		TreeInserts.Inc()
	}
}

// IncTreeLookup records one tree lookup call.
func IncTreeLookup() {
	if TreeLookups != nil {
		TreeLookups.Inc()
	}
}
