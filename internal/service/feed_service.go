package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dailylens/internal/config"
	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/ranking"
	"github.com/dailylens/internal/ratelimit"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

const limitReachedMessage = "Monthly post limit reached for current tier."

// FeedService serves ranked, paginated, cached feed pages. The read path is
// rate limited and entitlement gated; ranking failures degrade to a
// recency-only ordering and never fail the request.
type FeedService struct {
	store   storage.StateStore
	pages   *storage.FeedCache
	bundles *storage.BundleCache
	ranker  *ranking.Ranker
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *logging.Logger
	cfg     *config.RankingConfig
	now     func() time.Time
}

// NewFeedService creates a feed service. pages may be nil when no Redis is
// configured; page caching is then skipped.
func NewFeedService(
	store storage.StateStore,
	pages *storage.FeedCache,
	bundles *storage.BundleCache,
	ranker *ranking.Ranker,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
	cfg *config.RankingConfig,
	logger *logging.Logger,
) *FeedService {
	return &FeedService{
		store:   store,
		pages:   pages,
		bundles: bundles,
		ranker:  ranker,
		limiter: limiter,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock replaces the time source for tests.
func (s *FeedService) SetClock(now func() time.Time) {
	s.now = now
}

// FeedRequest is one feed page request.
type FeedRequest struct {
	UserID string `json:"user_id"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// FeedItem is one card on a feed or explore page.
type FeedItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Score       float64   `json:"score"`
	IsSponsored bool      `json:"is_sponsored"`
}

// FeedResponse is one feed page plus the ranking diagnostics the client
// renders alongside it.
type FeedResponse struct {
	Items                    []FeedItem                `json:"items"`
	NextOffset               int                       `json:"next_offset"`
	HasMore                  bool                      `json:"has_more"`
	SubjectAffinity          map[types.Subject]float64 `json:"subject_affinity"`
	ExplorationSubjectScores map[types.Subject]float64 `json:"exploration_subject_scores"`
	// BanditSubjectScores mirrors ExplorationSubjectScores for clients that
	// still read the old field name.
	BanditSubjectScores map[types.Subject]float64           `json:"bandit_subject_scores"`
	SubjectPullCounts   map[types.Subject]int               `json:"subject_pull_counts"`
	FeedFocusMode       types.FocusMode                     `json:"feed_focus_mode"`
	TopicBuckets        map[types.Subject]types.TopicBucket `json:"topic_buckets"`
	TargetMix           map[types.TopicBucket]float64       `json:"target_mix"`
	Entitlement         *models.Entitlement                 `json:"entitlement"`
	Message             string                              `json:"message,omitempty"`
}

// GetFeed returns one ranked feed page for the user.
func (s *FeedService) GetFeed(ctx context.Context, req *FeedRequest) (*FeedResponse, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user_id", "must not be empty")
	}
	if req.Offset < 0 {
		return nil, apperrors.NewValidationError("offset", "must not be negative")
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	if req.Limit < 1 || req.Limit > 25 {
		return nil, apperrors.NewValidationError("limit", "must be between 1 and 25")
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if allowed, limit, retryAfter := s.limiter.Allow(user.ID, ratelimit.ClassFeed); !allowed {
		s.metrics.RateLimitRejections.Add(1)
		return nil, apperrors.NewRateLimitedError("/api/feed", limit, retryAfter)
	}

	now := s.now().UTC()
	ent, err := computeEntitlement(ctx, s.store, user, now)
	if err != nil {
		return nil, err
	}
	if !ent.CanConsume {
		return s.limitedResponse(user, ent, req.Offset), nil
	}

	version, err := s.store.CurrentVersion(ctx, user.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	var key string
	if s.pages != nil {
		key = s.pages.PageKey(user.ID, req.Offset, req.Limit, version)
		var cached FeedResponse
		hit, err := s.pages.GetPage(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Feed page cache read failed")
		} else if hit {
			s.metrics.CacheHit()
			return &cached, nil
		}
	}
	s.metrics.CacheMiss()

	bundle, ok := s.bundles.Get(user.ID, version)
	degraded := false
	if !ok {
		bundle, degraded = s.buildBundle(ctx, user, version, now)
		if !degraded {
			s.bundles.Put(bundle)
			s.metrics.RankBundles.Store(int64(s.bundles.Len()))
		}
	}

	if len(bundle.Ranked) == 0 {
		resp := s.limitedResponse(user, ent, req.Offset)
		resp.SubjectAffinity = bundle.Affinity
		resp.ExplorationSubjectScores = bundle.ExplorationScores
		resp.BanditSubjectScores = bundle.ExplorationScores
		resp.SubjectPullCounts = bundle.SubjectPullCounts
		resp.TargetMix = bundle.TargetMix
		resp.Message = fmt.Sprintf(
			"No fresh recommendations in the last %d days. Refresh the news pool.",
			s.cfg.MaxArticleAgeDays,
		)
		return resp, nil
	}

	start := req.Offset
	if start > len(bundle.Ranked) {
		start = len(bundle.Ranked)
	}
	end := start + req.Limit
	if end > len(bundle.Ranked) {
		end = len(bundle.Ranked)
	}
	window := bundle.Ranked[start:end]

	items := make([]FeedItem, 0, len(window))
	for _, scored := range window {
		items = append(items, FeedItem{
			ID:        scored.Article.ID,
			Title:     scored.Article.Title,
			Subject:   string(scored.Article.Subject),
			Summary:   scored.Article.Summary,
			CreatedAt: scored.Article.CreatedAt,
			URL:       scored.Article.URL,
			Source:    scored.Article.Source,
			Score:     roundScore(scored.Score),
		})
	}
	if ent.AdEnabled {
		items = injectSponsoredCards(items, s.cfg.SponsoredCadence, now)
	}

	nextOffset := req.Offset + len(window)
	resp := &FeedResponse{
		Items:                    items,
		NextOffset:               nextOffset,
		HasMore:                  nextOffset < len(bundle.Ranked),
		SubjectAffinity:          bundle.Affinity,
		ExplorationSubjectScores: bundle.ExplorationScores,
		BanditSubjectScores:      bundle.ExplorationScores,
		SubjectPullCounts:        bundle.SubjectPullCounts,
		FeedFocusMode:            bundle.FocusMode,
		TopicBuckets:             types.TopicBuckets(),
		TargetMix:                bundle.TargetMix,
		Entitlement:              ent,
	}

	if s.pages != nil && !degraded {
		if err := s.pages.SetPage(ctx, key, resp); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Feed page cache write failed")
		}
	}
	return resp, nil
}

// buildBundle computes the full ranked ordering, degrading to a
// recency-only ordering when the store reads behind ranking fail.
// Degraded bundles are served but never cached: the next request retries
// the full build instead of inheriting a partial ordering.
func (s *FeedService) buildBundle(ctx context.Context, user *models.User, version uint64, now time.Time) (*models.RankBundle, bool) {
	articles, err := s.store.ListArticles(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("Article listing failed, serving recency-only feed")
		return s.ranker.RecencyBundle(user, version, nil, nil, now), true
	}
	seen, err := s.store.SeenSet(ctx, user.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("Seen-set read failed, serving recency-only feed")
		return s.ranker.RecencyBundle(user, version, articles, nil, now), true
	}
	interactions, err := s.store.InteractionsFor(ctx, user.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("Interaction read failed, serving recency-only feed")
		return s.ranker.RecencyBundle(user, version, articles, seen, now), true
	}
	return s.ranker.BuildBundle(user, version, articles, interactions, seen, now), false
}

// limitedResponse is the empty page returned when the monthly quota is
// spent: neutral diagnostics, no items.
func (s *FeedService) limitedResponse(user *models.User, ent *models.Entitlement, offset int) *FeedResponse {
	return &FeedResponse{
		Items:                    []FeedItem{},
		NextOffset:               offset,
		HasMore:                  false,
		SubjectAffinity:          uniformSubjectScores(),
		ExplorationSubjectScores: uniformSubjectScores(),
		BanditSubjectScores:      uniformSubjectScores(),
		SubjectPullCounts:        zeroPullCounts(),
		FeedFocusMode:            types.NormalizeFocusMode(string(user.FocusMode)),
		TopicBuckets:             types.TopicBuckets(),
		TargetMix:                ranking.TargetMixFor(user),
		Entitlement:              ent,
		Message:                  limitReachedMessage,
	}
}
