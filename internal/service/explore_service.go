package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dailylens/internal/config"
	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/ingest"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/ranking"
	"github.com/dailylens/internal/ratelimit"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

// searchIngestMax caps how many live articles one explore query may pull
// into the pool.
const searchIngestMax = 80

// ExploreService serves the catalog browse/search surface. A query or
// subject filter triggers a live ingest pass before matching, so search
// results include articles fetched moments ago.
type ExploreService struct {
	store   storage.StateStore
	limiter *ratelimit.Limiter
	source  *ingest.GoogleNewsSource
	metrics *metrics.Metrics
	logger  *logging.Logger
	cfg     *config.RankingConfig
	now     func() time.Time
}

// NewExploreService creates an explore service. source may be nil; live
// search ingest is then skipped and queries match the existing pool only.
func NewExploreService(
	store storage.StateStore,
	limiter *ratelimit.Limiter,
	source *ingest.GoogleNewsSource,
	m *metrics.Metrics,
	cfg *config.RankingConfig,
	logger *logging.Logger,
) *ExploreService {
	return &ExploreService{
		store:   store,
		limiter: limiter,
		source:  source,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock replaces the time source for tests.
func (s *ExploreService) SetClock(now func() time.Time) {
	s.now = now
}

// ExploreRequest is one catalog browse or search request.
type ExploreRequest struct {
	UserID      string `json:"user_id"`
	Query       string `json:"query"`
	Subject     string `json:"subject"`
	IncludeSeen bool   `json:"include_seen"`
	Offset      int    `json:"offset"`
	Limit       int    `json:"limit"`
}

// ExploreResponse is one page of catalog results.
type ExploreResponse struct {
	Items       []FeedItem          `json:"items"`
	NextOffset  int                 `json:"next_offset"`
	HasMore     bool                `json:"has_more"`
	Total       int                 `json:"total"`
	Subjects    []types.Subject     `json:"subjects"`
	Entitlement *models.Entitlement `json:"entitlement"`
	Message     string              `json:"message,omitempty"`
}

// Explore returns one page of catalog results matching the query and
// subject filter, scored by text relevance and recency.
func (s *ExploreService) Explore(ctx context.Context, req *ExploreRequest) (*ExploreResponse, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user_id", "must not be empty")
	}
	if req.Offset < 0 {
		return nil, apperrors.NewValidationError("offset", "must not be negative")
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	if req.Limit < 1 || req.Limit > 50 {
		return nil, apperrors.NewValidationError("limit", "must be between 1 and 50")
	}
	subjectFilter := types.Subject(strings.TrimSpace(req.Subject))
	if subjectFilter != "" && !subjectFilter.Valid() {
		return nil, apperrors.NewValidationError("subject", "unknown subject")
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if allowed, limit, retryAfter := s.limiter.Allow(user.ID, ratelimit.ClassExplore); !allowed {
		s.metrics.RateLimitRejections.Add(1)
		return nil, apperrors.NewRateLimitedError("/api/explore", limit, retryAfter)
	}

	now := s.now().UTC()
	ent, err := computeEntitlement(ctx, s.store, user, now)
	if err != nil {
		return nil, err
	}
	if !ent.CanConsume && !req.IncludeSeen {
		return &ExploreResponse{
			Items:       []FeedItem{},
			NextOffset:  req.Offset,
			HasMore:     false,
			Total:       0,
			Subjects:    types.Subjects(),
			Entitlement: ent,
			Message:     limitReachedMessage,
		}, nil
	}

	query := strings.TrimSpace(req.Query)
	if query != "" || subjectFilter != "" {
		s.ingestForSearch(ctx, query, subjectFilter)
	}

	articles, err := s.store.ListArticles(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	seen := map[string]struct{}{}
	if !req.IncludeSeen {
		seen, err = s.store.SeenSet(ctx, user.ID)
		if err != nil {
			return nil, mapStoreError(err)
		}
	}

	candidates := make([]models.ScoredArticle, 0, len(articles))
	for _, article := range articles {
		if _, consumed := seen[article.ID]; consumed {
			continue
		}
		if subjectFilter != "" && article.Subject != subjectFilter {
			continue
		}
		if query != "" && ranking.TextScore(article, query) <= 0 {
			continue
		}
		candidates = append(candidates, models.ScoredArticle{
			Article: article,
			Score:   ranking.ExploreScore(article, query, now),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Article.ID < candidates[j].Article.ID
	})

	start := req.Offset
	if start > len(candidates) {
		start = len(candidates)
	}
	end := start + req.Limit
	if end > len(candidates) {
		end = len(candidates)
	}
	window := candidates[start:end]

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
	return &ExploreResponse{
		Items:       items,
		NextOffset:  nextOffset,
		HasMore:     nextOffset < len(candidates),
		Total:       len(candidates),
		Subjects:    types.Subjects(),
		Entitlement: ent,
	}, nil
}

// ingestForSearch pulls fresh articles matching the search into the pool.
// Failures are logged and absorbed; search proceeds on the existing pool.
func (s *ExploreService) ingestForSearch(ctx context.Context, query string, subjectFilter types.Subject) {
	if s.source == nil {
		return
	}

	nextID, err := s.store.NextArticleID(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Search ingest skipped, next article id unavailable")
		return
	}
	startID, err := strconv.Atoi(strings.TrimPrefix(nextID, "a"))
	if err != nil {
		s.logger.WithError(err).WithField("id", nextID).Warn("Search ingest skipped, malformed article id")
		return
	}

	existing, err := s.store.ListArticles(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Search ingest skipped, article listing failed")
		return
	}
	links := make(map[string]struct{}, len(existing))
	for _, article := range existing {
		links[article.URL] = struct{}{}
	}

	added := s.source.SearchIngest(ctx, query, subjectFilter, startID, links, searchIngestMax)
	if len(added) == 0 {
		return
	}
	if err := s.store.UpsertArticles(ctx, added); err != nil {
		s.logger.WithError(err).Warn("Search ingest upsert failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"query": query,
		"added": len(added),
	}).Info("Live search ingest added articles")
}
