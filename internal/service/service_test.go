package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/pipeline"
	"github.com/dailylens/internal/ranking"
	"github.com/dailylens/internal/ratelimit"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

var testNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store        *storage.MemoryStore
	pages        *storage.FeedCache
	bundles      *storage.BundleCache
	queue        *pipeline.LocalQueue
	metrics      *metrics.Metrics
	feed         *FeedService
	explore      *ExploreService
	interactions *InteractionService
	users        *UserService
	monitoring   *MonitoringService
}

func testRankingConfig() *config.RankingConfig {
	return &config.RankingConfig{
		AffinityWeight:     6.2,
		ExplorationWeight:  6.8,
		RecencyWeight:      0.8,
		JitterWeight:       0.35,
		JitterSalt:         "test-salt",
		ExplorationC:       1.3,
		PriorMeanReward:    0.42,
		HalfLifeDays:       21,
		MaxInteractionDays: 180,
		MaxArticleAgeDays:  30,
		InterleaveExploit:  2,
		InterleaveExplore:  1,
		InterleaveDepth:    30,
		SponsoredCadence:   5,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimits(t, 100, 100)
}

func newTestEnvWithLimits(t *testing.T, feedPerWindow, explorePerWindow int) *testEnv {
	t.Helper()

	clock := func() time.Time { return testNow }
	logger := logging.NewLogger(logging.LevelError, logging.FormatJSON)

	store := storage.NewMemoryStore()
	store.SetClock(clock)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pages := storage.NewFeedCache(storage.NewRedisCacheFromClient(client), 30*time.Second)
	bundles := storage.NewBundleCache(45 * time.Second)

	cfg := testRankingConfig()
	m := metrics.New()
	queue := pipeline.NewLocalQueue(100, m)
	ranker := ranking.NewRanker(cfg, ranking.NewAffinityModel(cfg), ranking.NewExplorationModel(cfg))
	limiter := ratelimit.NewLimiter(time.Minute, map[ratelimit.EndpointClass]int{
		ratelimit.ClassFeed:    feedPerWindow,
		ratelimit.ClassExplore: explorePerWindow,
	})

	feed := NewFeedService(store, pages, bundles, ranker, limiter, m, cfg, logger)
	feed.SetClock(clock)
	explore := NewExploreService(store, limiter, nil, m, cfg, logger)
	explore.SetClock(clock)
	interactions := NewInteractionService(store, queue, nil, logger)
	interactions.SetClock(clock)
	users := NewUserService(store, logger)
	users.SetClock(clock)

	fullCfg := &config.Config{
		Database: config.DatabaseConfig{Backend: "memory"},
		Pipeline: config.PipelineConfig{Backend: "local", Topic: "interaction-events"},
		RateLimit: config.RateLimitConfig{
			Window:           time.Minute,
			FeedPerWindow:    feedPerWindow,
			ExplorePerWindow: explorePerWindow,
		},
	}
	monitoring := NewMonitoringService(store, m, pages, bundles, nil, fullCfg, logger)
	monitoring.SetClock(clock)

	return &testEnv{
		store:        store,
		pages:        pages,
		bundles:      bundles,
		queue:        queue,
		metrics:      m,
		feed:         feed,
		explore:      explore,
		interactions: interactions,
		users:        users,
		monitoring:   monitoring,
	}
}

func (e *testEnv) seedUser(t *testing.T, id string, tier types.UserTier, role string) *models.User {
	t.Helper()
	user := &models.User{
		ID:                  id,
		Name:                "User " + id,
		Tier:                tier,
		Role:                role,
		FocusMode:           types.FocusBalanced,
		OnboardingCompleted: true,
		ReferralCode:        models.ReferralCodeFor(id),
		CreatedAt:           testNow.Add(-90 * 24 * time.Hour),
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) seedArticles(t *testing.T, count int) []*models.Article {
	t.Helper()
	subjects := types.Subjects()
	articles := make([]*models.Article, 0, count)
	for i := 0; i < count; i++ {
		articles = append(articles, &models.Article{
			ID:        fmt.Sprintf("a%d", i+1),
			Title:     fmt.Sprintf("Headline %d", i+1),
			Subject:   subjects[i%len(subjects)],
			Summary:   fmt.Sprintf("Summary for headline %d.", i+1),
			CreatedAt: testNow.Add(-time.Duration(i%20) * 24 * time.Hour),
			URL:       fmt.Sprintf("https://news.example.com/a%d", i+1),
			Source:    "Example Wire",
		})
	}
	require.NoError(t, e.store.UpsertArticles(context.Background(), articles))
	return articles
}

func (e *testEnv) recordOK(t *testing.T, userID, articleID string, action types.Action) *InteractionResponse {
	t.Helper()
	resp, err := e.interactions.Record(context.Background(), &InteractionRequest{
		UserID:       userID,
		ArticleID:    articleID,
		Action:       action,
		DwellSeconds: 30,
	})
	require.NoError(t, err)
	require.True(t, resp.OK)
	return resp
}

func organicIDs(items []FeedItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !item.IsSponsored {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
