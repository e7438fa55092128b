package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// snapshotOps counts snapshot saves and loads by result
	snapshotOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arche_snapshot_operations_total",
		Help: "Snapshot save and load attempts by operation and result",
	}, []string{"operation", "result"})

	// snapshotBytes records the size of the last snapshot blob written
	snapshotBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arche_snapshot_bytes",
		Help: "Size in bytes of the last snapshot blob written",
	})

	// indexRebuilds counts rebuilds from the primary tables
	indexRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arche_index_rebuilds_total",
		Help: "Secondary index rebuilds from the primary tables by reason",
	}, []string{"reason"})

	// indexDesync counts secondary entries found missing or contradictory
	indexDesync = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arche_index_desync_total",
		Help: "Secondary index entries found missing or inconsistent",
	}, []string{"index"})

	// indexEntries tracks the size of each in-memory index
	indexEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arche_index_entries",
		Help: "Number of entries in each in-memory index",
	}, []string{"index"})
)
