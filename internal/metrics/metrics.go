// Package metrics exposes Prometheus collectors for the scheduler core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frontier rejection reasons, used as the "reason" label.
const (
	ReasonDepth    = "depth"
	ReasonSeen     = "seen"
	ReasonQueued   = "queued"
	ReasonCapacity = "capacity"
)

var (
	// FrontierEnqueued counts URLs admitted to the frontier.
	FrontierEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crawlsched",
		Subsystem: "frontier",
		Name:      "enqueued_total",
		Help:      "URLs admitted to the frontier.",
	})

	// FrontierRejected counts admission rejections by reason.
	FrontierRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crawlsched",
		Subsystem: "frontier",
		Name:      "rejected_total",
		Help:      "URLs rejected at enqueue, by reason.",
	}, []string{"reason"})

	// FrontierDequeued counts URLs handed to workers.
	FrontierDequeued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crawlsched",
		Subsystem: "frontier",
		Name:      "dequeued_total",
		Help:      "URLs handed to fetch workers.",
	})

	// FrontierSize tracks the approximate queued URL count.
	FrontierSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crawlsched",
		Subsystem: "frontier",
		Name:      "size",
		Help:      "Approximate number of queued URLs.",
	})

	// MetadataFlushBatches counts successful durable write batches.
	MetadataFlushBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crawlsched",
		Subsystem: "metadata",
		Name:      "flush_batches_total",
		Help:      "Durable metadata batches written.",
	})

	// MetadataFlushErrors counts failed durable write batches.
	MetadataFlushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crawlsched",
		Subsystem: "metadata",
		Name:      "flush_errors_total",
		Help:      "Durable metadata batches that failed to write.",
	})

	// MetadataRecordsPersisted counts records written durably.
	MetadataRecordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crawlsched",
		Subsystem: "metadata",
		Name:      "records_persisted_total",
		Help:      "Metadata records written durably.",
	})

	// MetadataUpdatesDropped counts updates lost to a full queue.
	MetadataUpdatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crawlsched",
		Subsystem: "metadata",
		Name:      "updates_dropped_total",
		Help:      "Metadata updates dropped because the persistence queue was full.",
	})
)
