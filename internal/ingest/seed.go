package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/pipeline"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

// interactionSeeder is the ungated history-install path both store
// backends provide.
type interactionSeeder interface {
	storage.StateStore
	SeedInteractions(ctx context.Context, userID string, interactions []*models.Interaction) error
}

// EventArchiver mirrors seeded history into the analytics warehouse. May
// be nil when no archive is configured.
type EventArchiver interface {
	BatchInsert(ctx context.Context, events []*models.InteractionEvent) error
}

var demoUsers = []*models.User{
	{ID: "u1", Name: "Ava", Tier: types.TierFree, Role: "ML Engineer"},
	{ID: "u2", Name: "Noah", Tier: types.TierSilver, Role: "Data Scientist"},
	{ID: "u3", Name: "Mia", Tier: types.TierGold, Role: "AI Research Engineer"},
	{ID: "u4", Name: "Liam", Tier: types.TierSilver, Role: "MLOps Engineer"},
	{ID: "u5", Name: "Sophia", Tier: types.TierFree, Role: "AI Product Engineer"},
}

var preferredSubjects = map[string][]types.Subject{
	"u1": {types.SubjectEngineering, types.SubjectAI, types.SubjectCybersecurity},
	"u2": {types.SubjectAI, types.SubjectScience, types.SubjectFinance},
	"u3": {types.SubjectAI, types.SubjectScience, types.SubjectEngineering},
	"u4": {types.SubjectEngineering, types.SubjectProduct, types.SubjectCybersecurity},
	"u5": {types.SubjectAI, types.SubjectProduct, types.SubjectDesign},
}

// monthlyTargets pulls part of each demo user's history into the current
// billing window so tier gating is observable out of the box.
var monthlyTargets = map[string]int{
	"u1": 2,  // free
	"u2": 18, // silver
	"u3": 28, // gold
	"u4": 37, // silver
	"u5": 4,  // free
}

// SeedDemoData populates the store with the demo user base, an article
// pool and plausible interaction history, then replays that history into
// the event pipeline so the exploration stats warm up. Deterministic apart
// from the live article fetch.
func SeedDemoData(
	ctx context.Context,
	store interactionSeeder,
	sink pipeline.EventSink,
	archive EventArchiver,
	source *GoogleNewsSource,
	targetArticleCount int,
	logger *logging.Logger,
) error {
	rng := rand.New(rand.NewSource(42)) // #nosec G404 - reproducible demo data
	now := time.Now().UTC()

	articles := source.FetchPool(ctx, targetArticleCount)
	if err := store.ReplaceArticlePool(ctx, articles); err != nil {
		return fmt.Errorf("failed to install article pool: %w", err)
	}

	subjectOf := make(map[string]types.Subject, len(articles))
	for _, a := range articles {
		subjectOf[a.ID] = a.Subject
	}

	for _, proto := range demoUsers {
		user := *proto
		user.OnboardingCompleted = true
		user.FocusMode = types.FocusBalanced
		user.ReferralCode = models.ReferralCodeFor(user.ID)
		user.CreatedAt = now
		if err := store.CreateUser(ctx, &user); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", user.ID, err)
		}

		history := buildHistory(rng, &user, articles, now)
		if err := store.SeedInteractions(ctx, user.ID, history); err != nil {
			return fmt.Errorf("failed to seed history for %s: %w", user.ID, err)
		}

		// Warm the exploration stats from the seeded history.
		events := make([]*models.InteractionEvent, 0, len(history))
		for _, it := range history {
			event := &models.InteractionEvent{
				EventID:      it.EventID,
				UserID:       it.UserID,
				ArticleID:    it.ArticleID,
				Subject:      subjectOf[it.ArticleID],
				Action:       it.Action,
				DwellSeconds: it.DwellSeconds,
				Timestamp:    it.Timestamp,
			}
			sink.Publish(event)
			events = append(events, event)
		}
		if archive != nil {
			if err := archive.BatchInsert(ctx, events); err != nil {
				logger.WithError(err).WithField("user_id", user.ID).Warn("Seed history archive failed")
			}
		}
	}

	logger.WithField("articles", len(articles)).WithField("users", len(demoUsers)).Info("Demo data seeded")
	return nil
}

func buildHistory(rng *rand.Rand, user *models.User, articles []*models.Article, now time.Time) []*models.Interaction {
	pool := make([]*models.Article, len(articles))
	copy(pool, articles)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	count := 26 + rng.Intn(15)
	if count > len(pool) {
		count = len(pool)
	}
	preferred := make(map[types.Subject]struct{})
	for _, s := range preferredSubjects[user.ID] {
		preferred[s] = struct{}{}
	}

	history := make([]*models.Interaction, 0, count)
	for _, article := range pool[:count] {
		_, boosted := preferred[article.Subject]
		action := sampleAction(rng, boosted)
		history = append(history, &models.Interaction{
			EventID:      uuid.New().String(),
			UserID:       user.ID,
			ArticleID:    article.ID,
			Action:       action,
			DwellSeconds: sampleDwell(rng, action, boosted),
			Timestamp: now.Add(-time.Duration(35+rng.Intn(86))*24*time.Hour -
				time.Duration(rng.Intn(24))*time.Hour),
		})
	}

	// Pull some events into the current month so quotas are partly used.
	target := monthlyTargets[user.ID]
	rng.Shuffle(len(history), func(i, j int) { history[i], history[j] = history[j], history[i] })
	for idx := 0; idx < target && idx < len(history); idx++ {
		history[idx].Timestamp = now.Add(-time.Duration(1+rng.Intn(24))*24*time.Hour -
			time.Duration(rng.Intn(23))*time.Hour)
	}
	return history
}

func sampleAction(rng *rand.Rand, boosted bool) types.Action {
	weights := []int{46, 8, 10, 6, 30}
	if boosted {
		weights = []int{38, 22, 18, 12, 10}
	}
	actions := []types.Action{
		types.ActionView, types.ActionLike, types.ActionSave, types.ActionShare, types.ActionSkip,
	}

	total := 0
	for _, w := range weights {
		total += w
	}
	pick := rng.Intn(total)
	for i, w := range weights {
		if pick < w {
			return actions[i]
		}
		pick -= w
	}
	return types.ActionView
}

func sampleDwell(rng *rand.Rand, action types.Action, boosted bool) float64 {
	if action == types.ActionSkip {
		return 1 + rng.Float64()*7
	}
	base := 18 + rng.Float64()*112
	switch action {
	case types.ActionLike, types.ActionSave, types.ActionShare:
		base *= 1.35
	}
	if boosted {
		base *= 1.2
	}
	if base > 420 {
		base = 420
	}
	return base
}
