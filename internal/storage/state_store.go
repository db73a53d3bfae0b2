// Package storage provides the engine's state store, feed caches and the
// optional durable repository implementations.
package storage

import (
	"context"
	"time"

	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// EntitlementExceededError is returned when an interaction write would push
// a user past their monthly consumption limit. The write has no side effects.
type EntitlementExceededError struct {
	Tier  types.UserTier
	Limit int
	Used  int
}

func (e *EntitlementExceededError) Error() string {
	return "monthly post limit reached for current tier"
}

// NotFoundError is returned for unknown users or articles.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found: " + e.ID
}

// StateStore is the authoritative record of users, articles, interactions,
// per-user seen-sets and state versions. Writes to a single user are
// serialized; the core must function correctly against the in-memory
// implementation, durability is a backing concern.
type StateStore interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	FindUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	// UpdateFocusMode changes the focus mode and bumps the state version.
	UpdateFocusMode(ctx context.Context, userID string, mode types.FocusMode) error
	IncrementReferralCount(ctx context.Context, userID string) error
	NextUserID(ctx context.Context) (string, error)

	// Articles
	UpsertArticles(ctx context.Context, articles []*models.Article) error
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	ListArticles(ctx context.Context) ([]*models.Article, error)
	ReplaceArticlePool(ctx context.Context, articles []*models.Article) error
	NextArticleID(ctx context.Context) (string, error)

	// Interactions. RecordInteraction applies the entitlement gate, the
	// append, the seen-mark and the version bump as one atomic unit with
	// respect to the user; a gated write leaves no partial state behind.
	RecordInteraction(ctx context.Context, interaction *models.Interaction) error
	InteractionsFor(ctx context.Context, userID string) ([]*models.Interaction, error)
	IsSeen(ctx context.Context, userID, articleID string) (bool, error)
	SeenSet(ctx context.Context, userID string) (map[string]struct{}, error)
	// ConsumedThisMonth counts distinct articles the user interacted with
	// inside the current billing window.
	ConsumedThisMonth(ctx context.Context, userID string, now time.Time) (int, error)

	// State versions
	CurrentVersion(ctx context.Context, userID string) (uint64, error)
	BumpVersion(ctx context.Context, userID string) (uint64, error)

	// CountsByTier summarizes the user base for the dashboard.
	CountsByTier(ctx context.Context) (map[types.UserTier]int, error)
}
