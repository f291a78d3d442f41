// Package metrics exposes Prometheus instrumentation for the index write
// path, the purge engine and the deferred task queue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WriterDecisions counts debounce outcomes on the write path, labelled by
	// index table and decision.
	WriterDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "centralindex_writer_decisions_total",
			Help: "Debounce decisions made by the index writer",
		},
		[]string{"table", "decision"},
	)

	// WriterAbandoned counts writes dropped before reaching storage.
	WriterAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "centralindex_writer_abandoned_total",
			Help: "Index writes abandoned before storage",
		},
		[]string{"reason"}, // disabled, excluded_group, excluded_ip, no_global_id
	)

	// WriteFailures counts deferred index mutations that errored in storage.
	WriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "centralindex_write_failures_total",
			Help: "Deferred index mutations that failed in storage",
		},
	)

	// PurgedRows counts rows removed by the purge engine per table.
	PurgedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "centralindex_purged_rows_total",
			Help: "Expired activity rows deleted by the purge engine",
		},
		[]string{"table"},
	)

	// TaskQueueDepth tracks tasks waiting in the deferred write queue.
	TaskQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "centralindex_task_queue_depth",
			Help: "Tasks currently queued for deferred execution",
		},
	)

	// TasksDropped counts tasks rejected because the queue was full.
	TasksDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "centralindex_tasks_dropped_total",
			Help: "Deferred tasks dropped due to a full queue",
		},
	)
)
