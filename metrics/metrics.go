// Package metrics exposes the prometheus counters this module exports
// for load hits/misses by source, checkpoint rebuilds, and shift
// suggestions. Purely observability: it carries no behavior and is
// safe to ignore (spec.md's non-goals don't exclude instrumenting the
// component the spec itself defines -- they exclude building a
// general-purpose KV store).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LoadsBySource counts Load() outcomes by where the state came
	// from: "delta0", "checkpoint0", "delta1_or_checkpoint1", "miss".
	LoadsBySource = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cachecoherence",
		Name:      "loads_total",
		Help:      "Count of Load() calls by the cache source that satisfied them.",
	}, []string{"source"})

	// CheckpointRebuilds counts times after_poll rebuilt the delta maps
	// from scratch rather than taking the fast path.
	CheckpointRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cachecoherence",
		Name:      "checkpoint_rebuilds_total",
		Help:      "Count of after_poll calls that rebuilt delta_after0/delta_after1.",
	})

	// CheckpointShiftsSuggested counts calls to suggest_shift that
	// actually published a new marker.
	CheckpointShiftsSuggested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cachecoherence",
		Name:      "checkpoint_shifts_suggested_total",
		Help:      "Count of suggest_shift calls that published a new checkpoint marker.",
	})
)

func init() {
	prometheus.MustRegister(LoadsBySource, CheckpointRebuilds, CheckpointShiftsSuggested)
}
