// Package metrics exposes the engine's operational counters, both as
// Prometheus collectors and as a JSON snapshot for the monitoring dashboard.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter the engine maintains. One instance per engine;
// tests construct their own so they never share state.
type Metrics struct {
	EventsPublished     atomic.Int64
	EventsProcessed     atomic.Int64
	EventsFailed        atomic.Int64
	EventsDropped       atomic.Int64
	FeedCacheHits       atomic.Int64
	FeedCacheMisses     atomic.Int64
	FeedCacheEntries    atomic.Int64
	RankBundles         atomic.Int64
	RateLimitRejections atomic.Int64

	queueDepth func() int

	promEventsPublished prometheus.Counter
	promEventsProcessed prometheus.Counter
	promEventsFailed    prometheus.Counter
	promEventsDropped   prometheus.Counter
	promCacheHits       prometheus.Counter
	promCacheMisses     prometheus.Counter
	promQueueDepth      prometheus.GaugeFunc
	promRankBundles     prometheus.GaugeFunc

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.promEventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dailylens_events_published_total",
		Help: "Interaction events published to the pipeline.",
	})
	m.promEventsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dailylens_events_processed_total",
		Help: "Interaction events applied by the pipeline consumer.",
	})
	m.promEventsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dailylens_events_failed_total",
		Help: "Interaction events the consumer failed to apply.",
	})
	m.promEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dailylens_events_dropped_total",
		Help: "Interaction events dropped on queue overflow.",
	})
	m.promCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dailylens_feed_cache_hits_total",
		Help: "Feed page cache hits.",
	})
	m.promCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dailylens_feed_cache_misses_total",
		Help: "Feed page cache misses.",
	})
	m.promQueueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dailylens_event_queue_depth",
		Help: "Unconsumed events in the local pipeline queue.",
	}, func() float64 {
		if m.queueDepth == nil {
			return 0
		}
		return float64(m.queueDepth())
	})
	m.promRankBundles = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dailylens_rank_bundles",
		Help: "Precomputed per-user rank bundles currently held.",
	}, func() float64 {
		return float64(m.RankBundles.Load())
	})

	m.registry.MustRegister(
		m.promEventsPublished,
		m.promEventsProcessed,
		m.promEventsFailed,
		m.promEventsDropped,
		m.promCacheHits,
		m.promCacheMisses,
		m.promQueueDepth,
		m.promRankBundles,
	)

	return m
}

// Registry returns the Prometheus registry backing this instance.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetQueueDepthFunc wires the live queue depth gauge to the pipeline.
func (m *Metrics) SetQueueDepthFunc(fn func() int) {
	m.queueDepth = fn
}

// QueueDepth returns the current pipeline queue depth, or -1 when no local
// queue is wired (broker mode).
func (m *Metrics) QueueDepth() int {
	if m.queueDepth == nil {
		return -1
	}
	return m.queueDepth()
}

// EventPublished records one published event.
func (m *Metrics) EventPublished() {
	m.EventsPublished.Add(1)
	m.promEventsPublished.Inc()
}

// EventProcessed records one applied event.
func (m *Metrics) EventProcessed() {
	m.EventsProcessed.Add(1)
	m.promEventsProcessed.Inc()
}

// EventFailed records one event the consumer could not apply.
func (m *Metrics) EventFailed() {
	m.EventsFailed.Add(1)
	m.promEventsFailed.Inc()
}

// EventDropped records one event dropped on overflow.
func (m *Metrics) EventDropped() {
	m.EventsDropped.Add(1)
	m.promEventsDropped.Inc()
}

// CacheHit records one feed page cache hit.
func (m *Metrics) CacheHit() {
	m.FeedCacheHits.Add(1)
	m.promCacheHits.Inc()
}

// CacheMiss records one feed page cache miss.
func (m *Metrics) CacheMiss() {
	m.FeedCacheMisses.Add(1)
	m.promCacheMisses.Inc()
}

// Snapshot is the JSON form of the counters for the monitoring dashboard.
type Snapshot struct {
	QueueDepth          int   `json:"queue_depth"`
	EventsPublished     int64 `json:"events_published"`
	EventsProcessed     int64 `json:"events_processed"`
	EventsFailed        int64 `json:"events_failed"`
	EventsDropped       int64 `json:"events_dropped"`
	FeedCacheHits       int64 `json:"feed_cache_hits"`
	FeedCacheMisses     int64 `json:"feed_cache_misses"`
	FeedCacheEntries    int64 `json:"feed_cache_entries"`
	RankBundles         int64 `json:"precomputed_user_bundles"`
	RateLimitRejections int64 `json:"rate_limit_rejections"`
}

// SnapshotNow captures the current counter values.
func (m *Metrics) SnapshotNow() Snapshot {
	return Snapshot{
		QueueDepth:          m.QueueDepth(),
		EventsPublished:     m.EventsPublished.Load(),
		EventsProcessed:     m.EventsProcessed.Load(),
		EventsFailed:        m.EventsFailed.Load(),
		EventsDropped:       m.EventsDropped.Load(),
		FeedCacheHits:       m.FeedCacheHits.Load(),
		FeedCacheMisses:     m.FeedCacheMisses.Load(),
		FeedCacheEntries:    m.FeedCacheEntries.Load(),
		RankBundles:         m.RankBundles.Load(),
		RateLimitRejections: m.RateLimitRejections.Load(),
	}
}
