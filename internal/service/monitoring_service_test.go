package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/types"
)

func TestHealthReportsPoolAndPipeline(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedArticles(t, 7)

	resp, err := env.monitoring.Health(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 7, resp.ArticleCount)
	assert.Equal(t, 0, resp.EventQueueDepth)
	assert.Equal(t, "local", resp.EventPipelineMode)
	assert.Equal(t, "memory", resp.DataBackendMode)
}

func TestDashboardAggregatesCounters(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedUser(t, "u2", types.TierSilver, "Data Scientist")
	env.seedUser(t, "u3", types.TierGold, "AI Research Engineer")
	articles := env.seedArticles(t, 20)

	_, err := env.feed.GetFeed(context.Background(), &FeedRequest{UserID: user.ID, Limit: 10})
	require.NoError(t, err)
	env.recordOK(t, user.ID, articles[0].ID, types.ActionLike)

	resp, err := env.monitoring.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "feed-engine:local", resp.RuntimeMode)
	assert.Equal(t, "memory", resp.DataBackendMode)
	assert.Equal(t, 20, resp.ArticleCount)

	assert.Equal(t, "local", resp.EventPipeline.Backend)
	assert.Equal(t, int64(1), resp.EventPipeline.EventsPublished)
	assert.Equal(t, 1, resp.EventPipeline.QueueDepth)

	assert.Equal(t, int64(1), resp.FeedServing.FeedCacheMisses)
	assert.Equal(t, 1, resp.FeedServing.FeedCacheEntries)
	assert.Equal(t, 1, resp.FeedServing.PrecomputedUserBundles)
	assert.Equal(t, 30, resp.FeedServing.FeedCacheTTLSeconds)

	assert.Equal(t, 60, resp.RateLimits.WindowSeconds)
	assert.Equal(t, 100, resp.RateLimits.FeedPerWindow)

	assert.Equal(t, map[types.UserTier]int{
		types.TierFree:   1,
		types.TierSilver: 1,
		types.TierGold:   1,
	}, resp.UserMix)
}

type stubActionCounter struct {
	since  time.Time
	counts map[types.Action]uint64
}

func (s *stubActionCounter) ActionCountsSince(_ context.Context, since time.Time) (map[types.Action]uint64, error) {
	s.since = since
	return s.counts, nil
}

func TestDashboardActionCountsFromArchive(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", types.TierFree, "ML Engineer")
	env.seedArticles(t, 5)

	// Without an archive the panel is omitted.
	resp, err := env.monitoring.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp.ActionCounts30d)

	counter := &stubActionCounter{counts: map[types.Action]uint64{
		types.ActionView: 40,
		types.ActionLike: 7,
	}}
	cfg := &config.Config{
		Database: config.DatabaseConfig{Backend: "memory"},
		Pipeline: config.PipelineConfig{Backend: "local", Topic: "interaction-events"},
	}
	monitoring := NewMonitoringService(env.store, env.metrics, nil, env.bundles, counter, cfg, logging.NewLogger(logging.LevelError, logging.FormatJSON))
	monitoring.SetClock(func() time.Time { return testNow })

	resp, err = monitoring.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, counter.counts, resp.ActionCounts30d)
	assert.Equal(t, testNow.Add(-30*24*time.Hour), counter.since)
}

func TestCatalogRefreshReplacesPool(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u1", types.TierFree, "ML Engineer")

	// No content source wired: refresh must fail loudly, not silently
	// empty the pool.
	catalog := NewCatalogService(env.store, nil, 50, logging.NewLogger(logging.LevelError, logging.FormatJSON))
	_, err := catalog.Refresh(context.Background())
	require.Error(t, err)
}
