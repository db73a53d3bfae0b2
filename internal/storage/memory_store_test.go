package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	fixed := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return fixed })
	return store
}

func seedUser(t *testing.T, store *MemoryStore, id string, tier types.UserTier) {
	t.Helper()
	err := store.CreateUser(context.Background(), &models.User{
		ID:           id,
		Name:         "Test User " + id,
		Tier:         tier,
		FocusMode:    types.FocusBalanced,
		ReferralCode: models.ReferralCodeFor(id),
	})
	require.NoError(t, err)
}

func interactionFor(userID, articleID string, action types.Action) *models.Interaction {
	return &models.Interaction{
		EventID:   uuid.New().String(),
		UserID:    userID,
		ArticleID: articleID,
		Action:    action,
	}
}

func TestMemoryStore_CreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedUser(t, store, "u1", types.TierFree)

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, types.TierFree, user.Tier)
	assert.Equal(t, "DL-U1", user.ReferralCode)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = store.GetUser(ctx, "nope")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user", notFound.Resource)
}

func TestMemoryStore_RecordInteraction_BumpsVersionAndMarksSeen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", types.TierGold)

	v0, err := store.CurrentVersion(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), v0)

	require.NoError(t, store.RecordInteraction(ctx, interactionFor("u1", "a1", types.ActionView)))

	v1, err := store.CurrentVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v1)

	seen, err := store.IsSeen(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.True(t, seen)

	history, err := store.InteractionsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "a1", history[0].ArticleID)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestMemoryStore_EntitlementGate_FreeTier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", types.TierFree)

	for i := 1; i <= 5; i++ {
		err := store.RecordInteraction(ctx, interactionFor("u1", fmt.Sprintf("a%d", i), types.ActionView))
		require.NoError(t, err, "interaction %d should pass the gate", i)
	}

	// Sixth distinct article is over the free limit.
	err := store.RecordInteraction(ctx, interactionFor("u1", "a6", types.ActionView))
	var exceeded *EntitlementExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, types.TierFree, exceeded.Tier)
	assert.Equal(t, 5, exceeded.Limit)
	assert.Equal(t, 5, exceeded.Used)

	// The rejected write left no partial state behind.
	seen, err := store.IsSeen(ctx, "u1", "a6")
	require.NoError(t, err)
	assert.False(t, seen)

	version, err := store.CurrentVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), version)

	used, err := store.ConsumedThisMonth(ctx, "u1", store.now())
	require.NoError(t, err)
	assert.Equal(t, 5, used)
}

func TestMemoryStore_EntitlementGate_SeenBypass(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", types.TierFree)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.RecordInteraction(ctx, interactionFor("u1", fmt.Sprintf("a%d", i), types.ActionView)))
	}

	// Re-touching an already consumed article goes through at the limit.
	err := store.RecordInteraction(ctx, interactionFor("u1", "a3", types.ActionLike))
	require.NoError(t, err)

	// Distinct count is unchanged.
	used, err := store.ConsumedThisMonth(ctx, "u1", store.now())
	require.NoError(t, err)
	assert.Equal(t, 5, used)
}

func TestMemoryStore_EntitlementGate_WindowReset(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return current })
	seedUser(t, store, "u1", types.TierFree)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.RecordInteraction(ctx, interactionFor("u1", fmt.Sprintf("a%d", i), types.ActionView)))
	}
	require.Error(t, store.RecordInteraction(ctx, interactionFor("u1", "a6", types.ActionView)))

	// The calendar month flips and the quota resets.
	current = time.Date(2026, 8, 1, 0, 30, 0, 0, time.UTC)
	require.NoError(t, store.RecordInteraction(ctx, interactionFor("u1", "a6", types.ActionView)))

	used, err := store.ConsumedThisMonth(ctx, "u1", current)
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestMemoryStore_GoldTierUnlimited(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", types.TierGold)

	for i := 1; i <= 100; i++ {
		require.NoError(t, store.RecordInteraction(ctx, interactionFor("u1", fmt.Sprintf("a%d", i), types.ActionView)))
	}
}

func TestMemoryStore_ConcurrentInteractions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", types.TierGold)

	var wg sync.WaitGroup
	const writers = 2
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.RecordInteraction(ctx, interactionFor("u1", fmt.Sprintf("c%d", n), types.ActionView))
		}(i)
	}
	wg.Wait()

	// Both writes landed and each bumped the version exactly once.
	version, err := store.CurrentVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(writers), version)

	history, err := store.InteractionsFor(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, writers)
}

func TestMemoryStore_UpdateFocusModeBumpsVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", types.TierSilver)

	require.NoError(t, store.UpdateFocusMode(ctx, "u1", types.FocusDiscovery))

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.FocusDiscovery, user.FocusMode)

	version, err := store.CurrentVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
}

func TestMemoryStore_FindUserByReferralCode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u7", types.TierFree)

	user, err := store.FindUserByReferralCode(ctx, "dl-u7")
	require.NoError(t, err)
	assert.Equal(t, "u7", user.ID)

	_, err = store.FindUserByReferralCode(ctx, "DL-UNKNOWN")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestMemoryStore_NextIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.NextUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	seedUser(t, store, "u1", types.TierFree)
	seedUser(t, store, "u9", types.TierFree)

	id, err = store.NextUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u10", id)

	require.NoError(t, store.UpsertArticles(ctx, []*models.Article{
		{ID: "a3", Title: "t", Subject: types.SubjectAI},
	}))
	aid, err := store.NextArticleID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a4", aid)
}

func TestMemoryStore_ReplaceArticlePool(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertArticles(ctx, []*models.Article{
		{ID: "a1", Title: "old", Subject: types.SubjectAI},
	}))
	require.NoError(t, store.ReplaceArticlePool(ctx, []*models.Article{
		{ID: "a2", Title: "new", Subject: types.SubjectScience},
		{ID: "a3", Title: "newer", Subject: types.SubjectFinance},
	}))

	articles, err := store.ListArticles(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "a2", articles[0].ID)

	_, err = store.GetArticle(ctx, "a1")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestMemoryStore_CountsByTier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1", types.TierFree)
	seedUser(t, store, "u2", types.TierFree)
	seedUser(t, store, "u3", types.TierGold)

	counts, err := store.CountsByTier(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[types.TierFree])
	assert.Equal(t, 0, counts[types.TierSilver])
	assert.Equal(t, 1, counts[types.TierGold])
}

// Property: after any sequence of interaction attempts, the state version
// equals the number of accepted writes, and distinct consumption never
// exceeds the tier limit.
func TestMemoryStore_GateInvariants_Property(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("version tracks accepted writes, quota never exceeded", prop.ForAll(
		func(articleNums []int) bool {
			store := NewMemoryStore()
			fixed := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
			store.SetClock(func() time.Time { return fixed })
			ctx := context.Background()
			err := store.CreateUser(ctx, &models.User{
				ID: "u1", Tier: types.TierFree, ReferralCode: "DL-U1",
			})
			if err != nil {
				return false
			}

			accepted := 0
			for _, n := range articleNums {
				err := store.RecordInteraction(ctx, interactionFor("u1", fmt.Sprintf("a%d", n), types.ActionView))
				if err == nil {
					accepted++
					continue
				}
				var exceeded *EntitlementExceededError
				if !errors.As(err, &exceeded) {
					return false
				}
			}

			version, err := store.CurrentVersion(ctx, "u1")
			if err != nil || version != uint64(accepted) {
				return false
			}
			used, err := store.ConsumedThisMonth(ctx, "u1", fixed)
			return err == nil && used <= 5
		},
		gen.SliceOf(gen.IntRange(1, 10)),
	))

	properties.TestingRun(t)
}
