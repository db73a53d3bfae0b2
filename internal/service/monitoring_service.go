package service

import (
	"context"
	"time"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

// ActionCounter aggregates archived interaction events by action. Backed
// by the ClickHouse archive in production; may be nil when no archive is
// configured.
type ActionCounter interface {
	ActionCountsSince(ctx context.Context, since time.Time) (map[types.Action]uint64, error)
}

// MonitoringService assembles the health and dashboard views from the
// engine's counters and caches.
type MonitoringService struct {
	store   storage.StateStore
	metrics *metrics.Metrics
	pages   *storage.FeedCache
	bundles *storage.BundleCache
	archive ActionCounter
	cfg     *config.Config
	logger  *logging.Logger
	now     func() time.Time
}

// NewMonitoringService creates a monitoring service. pages may be nil when
// no Redis is configured, archive when no ClickHouse is configured.
func NewMonitoringService(
	store storage.StateStore,
	m *metrics.Metrics,
	pages *storage.FeedCache,
	bundles *storage.BundleCache,
	archive ActionCounter,
	cfg *config.Config,
	logger *logging.Logger,
) *MonitoringService {
	return &MonitoringService{
		store:   store,
		metrics: m,
		pages:   pages,
		bundles: bundles,
		archive: archive,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source for tests.
func (s *MonitoringService) SetClock(now func() time.Time) {
	s.now = now
}

// HealthResponse is the liveness view.
type HealthResponse struct {
	Status            string `json:"status"`
	ArticleCount      int    `json:"article_count"`
	EventQueueDepth   int    `json:"event_queue_depth"`
	EventPipelineMode string `json:"event_pipeline_mode"`
	DataBackendMode   string `json:"data_backend_mode"`
}

// Health reports liveness. Queue depth is -1 in broker mode, where the
// broker owns the backlog.
func (s *MonitoringService) Health(ctx context.Context) (*HealthResponse, error) {
	articles, err := s.store.ListArticles(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &HealthResponse{
		Status:            "ok",
		ArticleCount:      len(articles),
		EventQueueDepth:   s.metrics.QueueDepth(),
		EventPipelineMode: s.cfg.Pipeline.Backend,
		DataBackendMode:   s.cfg.Database.Backend,
	}, nil
}

// PipelinePanel summarizes the event pipeline for the dashboard.
type PipelinePanel struct {
	Backend         string `json:"backend"`
	Topic           string `json:"topic"`
	QueueDepth      int    `json:"queue_depth"`
	EventsPublished int64  `json:"events_published"`
	EventsProcessed int64  `json:"events_processed"`
	EventsFailed    int64  `json:"events_failed"`
	EventsDropped   int64  `json:"events_dropped"`
}

// FeedServingPanel summarizes the cache tiers for the dashboard.
type FeedServingPanel struct {
	FeedCacheEntries       int   `json:"feed_cache_entries"`
	FeedCacheTTLSeconds    int   `json:"feed_cache_ttl_seconds"`
	FeedCacheHits          int64 `json:"feed_cache_hits"`
	FeedCacheMisses        int64 `json:"feed_cache_misses"`
	PrecomputedUserBundles int   `json:"precomputed_user_bundles"`
}

// RateLimitPanel summarizes the read-path rate budgets.
type RateLimitPanel struct {
	WindowSeconds    int `json:"window_seconds"`
	FeedPerWindow    int `json:"feed_per_window"`
	ExplorePerWindow int `json:"explore_per_window"`
}

// DashboardResponse is the operator's one-page view of the engine.
type DashboardResponse struct {
	RuntimeMode         string                 `json:"runtime_mode"`
	DataBackendMode     string                 `json:"data_backend_mode"`
	ArticleCount        int                    `json:"article_count"`
	EventPipeline       PipelinePanel          `json:"event_pipeline"`
	FeedServing         FeedServingPanel       `json:"feed_serving"`
	RateLimits          RateLimitPanel         `json:"rate_limits"`
	RateLimitRejections int64                  `json:"rate_limit_rejections"`
	UserMix             map[types.UserTier]int `json:"user_mix"`
	// ActionCounts30d is present only when the interaction archive is
	// configured.
	ActionCounts30d map[types.Action]uint64 `json:"interaction_actions_30d,omitempty"`
}

// Dashboard assembles the monitoring dashboard.
func (s *MonitoringService) Dashboard(ctx context.Context) (*DashboardResponse, error) {
	snap := s.metrics.SnapshotNow()

	articles, err := s.store.ListArticles(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	userMix, err := s.store.CountsByTier(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}

	feedServing := FeedServingPanel{
		FeedCacheHits:          snap.FeedCacheHits,
		FeedCacheMisses:        snap.FeedCacheMisses,
		PrecomputedUserBundles: s.bundles.Len(),
	}
	if s.pages != nil {
		feedServing.FeedCacheTTLSeconds = int(s.pages.TTL().Seconds())
		entries, err := s.pages.Entries(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Feed cache entry count unavailable")
		} else {
			feedServing.FeedCacheEntries = entries
		}
	}

	var actionCounts map[types.Action]uint64
	if s.archive != nil {
		counts, err := s.archive.ActionCountsSince(ctx, s.now().UTC().Add(-30*24*time.Hour))
		if err != nil {
			s.logger.WithError(err).Warn("Archive action counts unavailable")
		} else {
			actionCounts = counts
		}
	}

	return &DashboardResponse{
		RuntimeMode:         "feed-engine:" + s.cfg.Pipeline.Backend,
		DataBackendMode:     s.cfg.Database.Backend,
		ArticleCount:        len(articles),
		EventPipeline: PipelinePanel{
			Backend:         s.cfg.Pipeline.Backend,
			Topic:           s.cfg.Pipeline.Topic,
			QueueDepth:      snap.QueueDepth,
			EventsPublished: snap.EventsPublished,
			EventsProcessed: snap.EventsProcessed,
			EventsFailed:    snap.EventsFailed,
			EventsDropped:   snap.EventsDropped,
		},
		FeedServing: feedServing,
		RateLimits: RateLimitPanel{
			WindowSeconds:    int(s.cfg.RateLimit.Window.Seconds()),
			FeedPerWindow:    s.cfg.RateLimit.FeedPerWindow,
			ExplorePerWindow: s.cfg.RateLimit.ExplorePerWindow,
		},
		RateLimitRejections: snap.RateLimitRejections,
		UserMix:             userMix,
		ActionCounts30d:     actionCounts,
	}, nil
}
