package ranking

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

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

func interaction(articleID string, action types.Action, dwell float64, age time.Duration) *models.Interaction {
	return &models.Interaction{
		EventID:      uuid.New().String(),
		UserID:       "u1",
		ArticleID:    articleID,
		Action:       action,
		DwellSeconds: dwell,
		Timestamp:    testNow.Add(-age),
	}
}

func TestAffinityFor_UniformWithoutHistory(t *testing.T) {
	model := NewAffinityModel(testRankingConfig())

	affinity := model.AffinityFor(nil, nil, testNow)

	uniform := 1.0 / float64(len(types.Subjects()))
	total := 0.0
	for subject, v := range affinity {
		assert.InDelta(t, uniform, v, 1e-9, "subject %s", subject)
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestAffinityFor_LikedSubjectDominates(t *testing.T) {
	model := NewAffinityModel(testRankingConfig())
	subjectOf := map[string]types.Subject{
		"a1": types.SubjectAI,
		"a2": types.SubjectFitness,
	}
	history := []*models.Interaction{
		interaction("a1", types.ActionLike, 90, time.Hour),
		interaction("a1", types.ActionShare, 120, 2*time.Hour),
		interaction("a2", types.ActionSkip, 1, time.Hour),
	}

	affinity := model.AffinityFor(history, subjectOf, testNow)

	assert.Greater(t, affinity[types.SubjectAI], affinity[types.SubjectFitness])
	assert.Greater(t, affinity[types.SubjectAI], affinity[types.SubjectScience])
}

func TestAffinityFor_RecentInteractionsWeighMore(t *testing.T) {
	model := NewAffinityModel(testRankingConfig())
	subjectOf := map[string]types.Subject{
		"a1": types.SubjectAI,
		"a2": types.SubjectScience,
	}
	// Same action and dwell, very different ages.
	history := []*models.Interaction{
		interaction("a1", types.ActionLike, 60, 24*time.Hour),
		interaction("a2", types.ActionLike, 60, 120*24*time.Hour),
	}

	affinity := model.AffinityFor(history, subjectOf, testNow)

	assert.Greater(t, affinity[types.SubjectAI], affinity[types.SubjectScience])
}

func TestAffinityFor_AncientInteractionsIgnored(t *testing.T) {
	model := NewAffinityModel(testRankingConfig())
	subjectOf := map[string]types.Subject{"a1": types.SubjectAI}
	history := []*models.Interaction{
		interaction("a1", types.ActionShare, 300, 365*24*time.Hour),
	}

	affinity := model.AffinityFor(history, subjectOf, testNow)

	uniform := 1.0 / float64(len(types.Subjects()))
	assert.InDelta(t, uniform, affinity[types.SubjectAI], 1e-9)
}

func TestAffinityFor_Deterministic(t *testing.T) {
	model := NewAffinityModel(testRankingConfig())
	subjectOf := map[string]types.Subject{"a1": types.SubjectAI, "a2": types.SubjectDesign}
	history := []*models.Interaction{
		interaction("a1", types.ActionLike, 30, time.Hour),
		interaction("a2", types.ActionView, 10, 48*time.Hour),
	}

	first := model.AffinityFor(history, subjectOf, testNow)
	second := model.AffinityFor(history, subjectOf, testNow)
	assert.Equal(t, first, second)
}

func TestInteractionReward_Bounds(t *testing.T) {
	for _, action := range []types.Action{types.ActionView, types.ActionLike, types.ActionSave, types.ActionShare, types.ActionSkip} {
		for _, dwell := range []float64{0, 30, 120, 3600} {
			r := InteractionReward(action, dwell)
			assert.GreaterOrEqual(t, r, 0.0)
			assert.LessOrEqual(t, r, 1.2)
		}
	}
	assert.Greater(t, InteractionReward(types.ActionShare, 120), InteractionReward(types.ActionView, 120))
	assert.Less(t, InteractionReward(types.ActionSkip, 120), InteractionReward(types.ActionView, 120))
}

func TestExplorationModel_EqualScoresWithoutHistory(t *testing.T) {
	model := NewExplorationModel(testRankingConfig())

	scores, pulls := model.ScoresFor("u1")

	var reference float64
	for i, subject := range types.Subjects() {
		if i == 0 {
			reference = scores[subject]
			continue
		}
		assert.InDelta(t, reference, scores[subject], 1e-9)
	}
	for _, p := range pulls {
		assert.Zero(t, p)
	}
}

func TestExplorationModel_UnderSampledSubjectGetsBonus(t *testing.T) {
	model := NewExplorationModel(testRankingConfig())

	// Heavy low-reward sampling of one subject.
	for i := 0; i < 20; i++ {
		model.Apply(&models.InteractionEvent{
			EventID: uuid.New().String(),
			UserID:  "u1",
			Subject: types.SubjectAI,
			Action:  types.ActionSkip,
		})
	}

	scores, pulls := model.ScoresFor("u1")
	assert.Equal(t, 20, pulls[types.SubjectAI])
	assert.Equal(t, 0, pulls[types.SubjectScience])
	assert.Greater(t, scores[types.SubjectScience], scores[types.SubjectAI])
}

func TestExplorationModel_RedeliveryIsIdempotent(t *testing.T) {
	model := NewExplorationModel(testRankingConfig())
	event := &models.InteractionEvent{
		EventID: "evt-1",
		UserID:  "u1",
		Subject: types.SubjectAI,
		Action:  types.ActionLike,
	}

	assert.True(t, model.Apply(event))
	assert.False(t, model.Apply(event))
	assert.Equal(t, 1, model.PullCount("u1", types.SubjectAI))
}

func TestJitter_DeterministicAndBounded(t *testing.T) {
	first := Jitter("u1", "a1", "salt")
	second := Jitter("u1", "a1", "salt")
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first, 0.0)
	assert.Less(t, first, 1.0)

	// Different inputs spread across the range.
	values := map[float64]struct{}{}
	for i := 0; i < 50; i++ {
		values[Jitter("u1", fmt.Sprintf("a%d", i), "salt")] = struct{}{}
	}
	assert.Greater(t, len(values), 45)

	assert.NotEqual(t, Jitter("u1", "a1", "salt"), Jitter("u2", "a1", "salt"))
}

func buildArticles(n int) []*models.Article {
	subjects := types.Subjects()
	articles := make([]*models.Article, 0, n)
	for i := 0; i < n; i++ {
		articles = append(articles, &models.Article{
			ID:        fmt.Sprintf("a%d", i+1),
			Title:     fmt.Sprintf("Article %d", i+1),
			Subject:   subjects[i%len(subjects)],
			CreatedAt: testNow.Add(-time.Duration(i%20) * 24 * time.Hour),
		})
	}
	return articles
}

func testUser(role string, mode types.FocusMode) *models.User {
	return &models.User{ID: "u1", Tier: types.TierGold, Role: role, FocusMode: mode}
}

func TestRanker_ExcludesSeenAndStale(t *testing.T) {
	cfg := testRankingConfig()
	ranker := NewRanker(cfg, NewAffinityModel(cfg), NewExplorationModel(cfg))

	articles := buildArticles(10)
	articles = append(articles, &models.Article{
		ID: "stale", Title: "Old", Subject: types.SubjectAI,
		CreatedAt: testNow.Add(-60 * 24 * time.Hour),
	})
	seen := map[string]struct{}{"a1": {}}

	bundle := ranker.BuildBundle(testUser("designer", types.FocusBalanced), 0, articles, nil, seen, testNow)

	for _, item := range bundle.Ranked {
		assert.NotEqual(t, "a1", item.Article.ID)
		assert.NotEqual(t, "stale", item.Article.ID)
	}
	assert.Len(t, bundle.Ranked, 9)
}

func TestRanker_HigherAffinitySubjectRanksAbove(t *testing.T) {
	cfg := testRankingConfig()
	// Neutralize jitter so only the affinity signal separates the pair.
	cfg.JitterWeight = 0
	ranker := NewRanker(cfg, NewAffinityModel(cfg), NewExplorationModel(cfg))

	articles := []*models.Article{
		{ID: "ai", Title: "AI piece", Subject: types.SubjectAI, CreatedAt: testNow.Add(-24 * time.Hour)},
		{ID: "fit", Title: "Fitness piece", Subject: types.SubjectFitness, CreatedAt: testNow.Add(-24 * time.Hour)},
	}
	history := []*models.Interaction{
		interaction("ai", types.ActionShare, 200, time.Hour),
	}
	// History article stays out of the candidates; it only shapes affinity.
	subjectCarrier := append([]*models.Article{}, articles...)
	seen := map[string]struct{}{}

	bundle := ranker.BuildBundle(testUser("ml engineer", types.FocusBalanced), 1, subjectCarrier, history, seen, testNow)

	var aiScore, fitScore float64
	for _, item := range bundle.Ranked {
		switch item.Article.ID {
		case "ai":
			aiScore = item.Score
		case "fit":
			fitScore = item.Score
		}
	}
	assert.Greater(t, aiScore, fitScore)
}

func TestRanker_BundleDeterministicForSameState(t *testing.T) {
	cfg := testRankingConfig()
	ranker := NewRanker(cfg, NewAffinityModel(cfg), NewExplorationModel(cfg))
	articles := buildArticles(40)
	user := testUser("data scientist", types.FocusStrict)

	first := ranker.BuildBundle(user, 3, articles, nil, map[string]struct{}{}, testNow)
	second := ranker.BuildBundle(user, 3, articles, nil, map[string]struct{}{}, testNow)

	require.Equal(t, len(first.Ranked), len(second.Ranked))
	for i := range first.Ranked {
		assert.Equal(t, first.Ranked[i].Article.ID, second.Ranked[i].Article.ID)
		assert.Equal(t, first.Ranked[i].Score, second.Ranked[i].Score)
	}
}

func TestTargetMixFor(t *testing.T) {
	icp := testUser("ml engineer", types.FocusStrict)
	mix := TargetMixFor(icp)
	assert.InDelta(t, 0.85, mix[types.BucketCore], 1e-9)

	nonICP := testUser("chef", types.FocusDiscovery)
	mix = TargetMixFor(nonICP)
	assert.InDelta(t, 0.30, mix[types.BucketFrontier], 1e-9)

	// Shares always sum to 1.
	for _, u := range []*models.User{icp, nonICP, testUser("chef", "bogus")} {
		total := 0.0
		for _, share := range TargetMixFor(u) {
			total += share
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
}

func TestRanker_MixConvergesToTarget(t *testing.T) {
	cfg := testRankingConfig()
	// Disable the cadence so only the deficit scheduler shapes composition.
	cfg.InterleaveDepth = 0
	ranker := NewRanker(cfg, NewAffinityModel(cfg), NewExplorationModel(cfg))

	articles := buildArticles(200)
	user := testUser("ai researcher", types.FocusBalanced)

	bundle := ranker.BuildBundle(user, 0, articles, nil, map[string]struct{}{}, testNow)
	require.NotEmpty(t, bundle.Ranked)

	counts := map[types.TopicBucket]int{}
	for _, item := range bundle.Ranked {
		counts[item.Article.Subject.Bucket()]++
	}

	// The candidate pool is uniform across subjects, so the 12-subject
	// taxonomy caps each bucket's available share at 4/12. The realized
	// composition should still track the target as closely as supply allows.
	total := float64(len(bundle.Ranked))
	target := bundle.TargetMix
	available := map[types.TopicBucket]float64{
		types.BucketCore: 4.0 / 12.0, types.BucketAdjacent: 4.0 / 12.0, types.BucketFrontier: 4.0 / 12.0,
	}
	for bucket, share := range target {
		want := math.Min(share, available[bucket])
		if share > available[bucket] {
			// Demand above supply drains the bucket entirely.
			assert.InDelta(t, available[bucket], float64(counts[bucket])/total, 0.02, "bucket %s", bucket)
			continue
		}
		// Leftover supply absorbs overflow from drained buckets, so the
		// realized share can only exceed the target, never undershoot it.
		assert.GreaterOrEqual(t, float64(counts[bucket])/total, want-0.05, "bucket %s", bucket)
	}
}

func TestRanker_MixFrontOfOrderingTracksTarget(t *testing.T) {
	cfg := testRankingConfig()
	cfg.InterleaveDepth = 0
	ranker := NewRanker(cfg, NewAffinityModel(cfg), NewExplorationModel(cfg))

	articles := buildArticles(120)
	user := testUser("ai researcher", types.FocusStrict)

	bundle := ranker.BuildBundle(user, 0, articles, nil, map[string]struct{}{}, testNow)
	require.GreaterOrEqual(t, len(bundle.Ranked), 20)

	// Strict ICP wants 85% core; within the first 20 items the scheduler
	// should draw core as long as supply lasts.
	coreInHead := 0
	for _, item := range bundle.Ranked[:20] {
		if item.Article.Subject.Bucket() == types.BucketCore {
			coreInHead++
		}
	}
	assert.GreaterOrEqual(t, coreInHead, 14)
}

func TestInterleaveHead_SurfacesExploreFlagged(t *testing.T) {
	items := make([]models.ScoredArticle, 0, 12)
	for i := 0; i < 9; i++ {
		items = append(items, models.ScoredArticle{
			Article: &models.Article{ID: fmt.Sprintf("exploit%d", i)},
		})
	}
	for i := 0; i < 3; i++ {
		items = append(items, models.ScoredArticle{
			Article:        &models.Article{ID: fmt.Sprintf("explore%d", i)},
			ExploreFlagged: true,
		})
	}

	out := interleaveHead(items, 2, 1, 12)
	require.Len(t, out, 12)

	// Two exploit, one explore, repeating while both classes last.
	assert.Equal(t, "exploit0", out[0].Article.ID)
	assert.Equal(t, "exploit1", out[1].Article.ID)
	assert.Equal(t, "explore0", out[2].Article.ID)
	assert.Equal(t, "exploit2", out[3].Article.ID)
	assert.Equal(t, "exploit3", out[4].Article.ID)
	assert.Equal(t, "explore1", out[5].Article.ID)
}

func TestInterleaveHead_TailUntouched(t *testing.T) {
	items := make([]models.ScoredArticle, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, models.ScoredArticle{
			Article:        &models.Article{ID: fmt.Sprintf("a%d", i)},
			ExploreFlagged: i%2 == 0,
		})
	}

	out := interleaveHead(items, 2, 1, 4)
	require.Len(t, out, 10)
	for i := 4; i < 10; i++ {
		assert.Equal(t, items[i].Article.ID, out[i].Article.ID)
	}
}

func TestRanker_RecencyBundleFallback(t *testing.T) {
	cfg := testRankingConfig()
	ranker := NewRanker(cfg, NewAffinityModel(cfg), NewExplorationModel(cfg))

	articles := []*models.Article{
		{ID: "old", Subject: types.SubjectAI, CreatedAt: testNow.Add(-10 * 24 * time.Hour)},
		{ID: "new", Subject: types.SubjectScience, CreatedAt: testNow.Add(-1 * time.Hour)},
		{ID: "seen", Subject: types.SubjectAI, CreatedAt: testNow},
	}
	seen := map[string]struct{}{"seen": {}}

	bundle := ranker.RecencyBundle(testUser("chef", types.FocusBalanced), 0, articles, seen, testNow)
	require.Len(t, bundle.Ranked, 2)
	assert.Equal(t, "new", bundle.Ranked[0].Article.ID)
	assert.Equal(t, "old", bundle.Ranked[1].Article.ID)
}

func TestTextScore(t *testing.T) {
	article := &models.Article{
		Title:   "Transformers advance protein folding",
		Summary: "New research on transformers in biology.",
		Source:  "Science Daily",
	}

	assert.InDelta(t, 3.7, TextScore(article, "transformers"), 1e-9)
	assert.InDelta(t, 0.8, TextScore(article, "daily"), 1e-9)
	assert.Zero(t, TextScore(article, "blockchain"))
	assert.Zero(t, TextScore(article, "   "))

	// Query matching is case-insensitive.
	assert.Equal(t, TextScore(article, "TRANSFORMERS"), TextScore(article, "transformers"))
}
