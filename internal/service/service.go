// Package service implements the engine's application operations: feed
// serving, catalog exploration, interaction writes, user lifecycle and the
// monitoring dashboard.
package service

import (
	"context"
	"errors"
	"math"
	"time"

	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

// mapStoreError lifts storage-layer errors into the categorized taxonomy.
func mapStoreError(err error) error {
	var nf *storage.NotFoundError
	if errors.As(err, &nf) {
		return apperrors.NewNotFoundError(nf.Resource, nf.ID)
	}
	var exceeded *storage.EntitlementExceededError
	if errors.As(err, &exceeded) {
		remaining := exceeded.Limit - exceeded.Used
		if remaining < 0 {
			remaining = 0
		}
		return apperrors.NewEntitlementExceededError(exceeded.Tier, exceeded.Limit, exceeded.Used, remaining)
	}
	return apperrors.NewInternalError("storage operation failed", err)
}

// computeEntitlement derives the user's current entitlement from the store.
func computeEntitlement(ctx context.Context, store storage.StateStore, user *models.User, now time.Time) (*models.Entitlement, error) {
	used, err := store.ConsumedThisMonth(ctx, user.ID, now)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return models.ComputeEntitlement(user, used, now), nil
}

// uniformSubjectScores is the neutral score map returned when no ranking
// signal applies, one equal share per subject.
func uniformSubjectScores() map[types.Subject]float64 {
	subjects := types.Subjects()
	scores := make(map[types.Subject]float64, len(subjects))
	for _, subject := range subjects {
		scores[subject] = 1.0 / float64(len(subjects))
	}
	return scores
}

func zeroPullCounts() map[types.Subject]int {
	subjects := types.Subjects()
	counts := make(map[types.Subject]int, len(subjects))
	for _, subject := range subjects {
		counts[subject] = 0
	}
	return counts
}

// roundScore trims scores to three decimals for the wire.
func roundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}
