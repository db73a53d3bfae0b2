package service

import (
	"context"
	"time"

	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/ingest"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/storage"
)

// CatalogService owns the article pool lifecycle.
type CatalogService struct {
	store  storage.StateStore
	source *ingest.GoogleNewsSource
	target int
	logger *logging.Logger
	now    func() time.Time
}

// NewCatalogService creates a catalog service fetching target articles on
// each refresh.
func NewCatalogService(store storage.StateStore, source *ingest.GoogleNewsSource, target int, logger *logging.Logger) *CatalogService {
	return &CatalogService{store: store, source: source, target: target, logger: logger, now: time.Now}
}

// RefreshResponse reports the outcome of a pool refresh.
type RefreshResponse struct {
	OK           bool      `json:"ok"`
	ArticleCount int       `json:"article_count"`
	UserCount    int       `json:"user_count"`
	RefreshedAt  time.Time `json:"refreshed_at"`
}

// Refresh replaces the article pool with a fresh fetch and bumps every
// user's state version so cached pages built on the old pool go stale.
func (s *CatalogService) Refresh(ctx context.Context) (*RefreshResponse, error) {
	if s.source == nil {
		return nil, apperrors.NewInternalError("no content source configured", nil)
	}

	articles := s.source.FetchPool(ctx, s.target)
	if err := s.store.ReplaceArticlePool(ctx, articles); err != nil {
		return nil, mapStoreError(err)
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	for _, user := range users {
		if _, err := s.store.BumpVersion(ctx, user.ID); err != nil {
			return nil, mapStoreError(err)
		}
	}

	s.logger.WithField("article_count", len(articles)).Info("Article pool refreshed")
	return &RefreshResponse{
		OK:           true,
		ArticleCount: len(articles),
		UserCount:    len(users),
		RefreshedAt:  s.now().UTC(),
	}, nil
}
