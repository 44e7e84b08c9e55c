package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts completed runs by outcome status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitewatch_runs_total",
		Help: "The total number of monitoring runs, labeled by outcome.",
	}, []string{"status"})
	// FetchRetries counts fetch attempts beyond the first.
	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewatch_fetch_retries_total",
		Help: "The total number of fetch retries after transient failures.",
	})
	// SnapshotWrites counts successful snapshot persists.
	SnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewatch_snapshot_writes_total",
		Help: "The total number of snapshots written to the state file.",
	})
	// CorruptStateLoads counts state files that existed but could not be trusted.
	CorruptStateLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitewatch_corrupt_state_loads_total",
		Help: "The total number of loads that found a corrupt or incompatible state file.",
	})
)
