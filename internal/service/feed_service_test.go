package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/ranking"
	"github.com/dailylens/internal/ratelimit"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

func TestGetFeedFirstPage(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedArticles(t, 30)

	resp, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)

	organic := organicIDs(resp.Items)
	assert.Len(t, organic, 10)
	assert.Equal(t, 10, resp.NextOffset)
	assert.True(t, resp.HasMore)
	assert.Equal(t, types.FocusBalanced, resp.FeedFocusMode)
	assert.Equal(t, types.TierFree, resp.Entitlement.Tier)
	assert.InDelta(t, 1.0, sumScores(resp.SubjectAffinity), 1e-9)
	assert.InDelta(t, 1.0, sumScores(resp.ExplorationSubjectScores), 1e-9)
	assert.Equal(t, resp.ExplorationSubjectScores, resp.BanditSubjectScores)
	assert.Equal(t, types.TopicBuckets(), resp.TopicBuckets)
}

func TestGetFeedSponsoredCadenceForFreeTier(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedArticles(t, 30)

	resp, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)

	// 10 organic items with a card after every 5th.
	require.Len(t, resp.Items, 12)
	assert.True(t, resp.Items[5].IsSponsored)
	assert.Equal(t, "ad-1", resp.Items[5].ID)
	assert.Equal(t, "Sponsored", resp.Items[5].Subject)
	assert.True(t, resp.Items[11].IsSponsored)
	assert.Equal(t, "ad-2", resp.Items[11].ID)

	// Sponsored cards never shift the organic pagination window.
	assert.Equal(t, 10, resp.NextOffset)
}

func TestGetFeedNoSponsoredForPaidTier(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u3", types.TierGold, "AI Research Engineer")
	env.seedArticles(t, 30)

	resp, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)

	for _, item := range resp.Items {
		assert.False(t, item.IsSponsored)
	}
	assert.False(t, resp.Entitlement.AdEnabled)
}

func TestGetFeedCachesPages(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedArticles(t, 30)

	first, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	second, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, organicIDs(first.Items), organicIDs(second.Items))
	assert.Equal(t, int64(1), env.metrics.FeedCacheMisses.Load())
	assert.Equal(t, int64(1), env.metrics.FeedCacheHits.Load())
}

func TestGetFeedInteractionInvalidatesCachedPages(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedArticles(t, 30)

	first, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	consumed := organicIDs(first.Items)[0]

	env.recordOK(t, user.ID, consumed, types.ActionLike)

	second, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)

	// Version bump makes the old page unreachable and the consumed
	// article disappears from the fresh ranking.
	assert.Equal(t, int64(2), env.metrics.FeedCacheMisses.Load())
	assert.NotContains(t, organicIDs(second.Items), consumed)
}

func TestGetFeedQuotaExhaustedReturnsEmptyPage(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	articles := env.seedArticles(t, 30)

	for i := 0; i < 5; i++ {
		env.recordOK(t, user.ID, articles[i].ID, types.ActionView)
	}

	resp, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Offset: 0, Limit: 10})
	require.NoError(t, err)

	assert.Empty(t, resp.Items)
	assert.False(t, resp.HasMore)
	assert.Equal(t, "Monthly post limit reached for current tier.", resp.Message)
	assert.False(t, resp.Entitlement.CanConsume)
	for _, share := range resp.SubjectAffinity {
		assert.InDelta(t, 1.0/12.0, share, 1e-9)
	}
	for _, pulls := range resp.SubjectPullCounts {
		assert.Zero(t, pulls)
	}
}

func TestGetFeedEmptyPool(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")

	resp, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)

	assert.Empty(t, resp.Items)
	assert.False(t, resp.HasMore)
	assert.Equal(t, "No fresh recommendations in the last 30 days. Refresh the news pool.", resp.Message)
}

func TestGetFeedRateLimited(t *testing.T) {
	env := newTestEnvWithLimits(t, 2, 100)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedArticles(t, 10)

	for i := 0; i < 2; i++ {
		_, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 5})
		require.NoError(t, err)
	}

	_, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 5})
	require.Error(t, err)
	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, apperrors.CategoryRateLimit, catErr.Category)
	assert.Equal(t, 2, catErr.Details["limit_per_window"])
	assert.GreaterOrEqual(t, catErr.Details["retry_after_seconds"].(int), 1)
	assert.Equal(t, int64(1), env.metrics.RateLimitRejections.Load())
}

func TestGetFeedValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", types.TierFree, "ML Engineer")

	_, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: "", Limit: 10})
	assertCategory(t, err, apperrors.CategoryValidation)

	_, err = env.feed.GetFeed(context.Background(), &FeedRequest{UserID: "u1", Limit: 26})
	assertCategory(t, err, apperrors.CategoryValidation)

	_, err = env.feed.GetFeed(context.Background(), &FeedRequest{UserID: "u1", Offset: -1, Limit: 10})
	assertCategory(t, err, apperrors.CategoryValidation)

	_, err = env.feed.GetFeed(context.Background(), &FeedRequest{UserID: "ghost", Limit: 10})
	assertCategory(t, err, apperrors.CategoryNotFound)
}

func TestGetFeedPaginationEndOfBundle(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u3", types.TierGold, "AI Research Engineer")
	env.seedArticles(t, 12)

	resp, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 12, resp.NextOffset)
	assert.False(t, resp.HasMore)

	past, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Offset: 100, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.Equal(t, 100, past.NextOffset)
	assert.False(t, past.HasMore)
}

// flakyArticleStore fails ListArticles a fixed number of times, then
// delegates to the wrapped store.
type flakyArticleStore struct {
	storage.StateStore
	failures int
}

func (s *flakyArticleStore) ListArticles(ctx context.Context) ([]*models.Article, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("article listing unavailable")
	}
	return s.StateStore.ListArticles(ctx)
}

func TestGetFeedDegradedBundleNotCached(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierGold, "ML Engineer")
	env.seedArticles(t, 30)

	flaky := &flakyArticleStore{StateStore: env.store, failures: 1}
	cfg := testRankingConfig()
	m := metrics.New()
	ranker := ranking.NewRanker(cfg, ranking.NewAffinityModel(cfg), ranking.NewExplorationModel(cfg))
	limiter := ratelimit.NewLimiter(time.Minute, map[ratelimit.EndpointClass]int{
		ratelimit.ClassFeed: 100,
	})
	bundles := storage.NewBundleCache(45 * time.Second)
	feed := NewFeedService(flaky, env.pages, bundles, ranker, limiter, m, cfg, logging.NewLogger(logging.LevelError, logging.FormatJSON))
	feed.SetClock(func() time.Time { return testNow })

	degraded, err := feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, degraded.Items)
	assert.Contains(t, degraded.Message, "No fresh recommendations")
	assert.Equal(t, 0, bundles.Len())
	assert.Zero(t, m.RankBundles.Load())

	recovered, err := feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, recovered.Items, 10)
	assert.Empty(t, recovered.Message)
	assert.Equal(t, 1, bundles.Len())
}

func sumScores(scores map[types.Subject]float64) float64 {
	total := 0.0
	for _, v := range scores {
		total += v
	}
	return total
}

func assertCategory(t *testing.T, err error, category apperrors.ErrorCategory) {
	t.Helper()
	require.Error(t, err)
	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, category, catErr.Category)
}
