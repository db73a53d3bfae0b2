package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/pipeline"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

// InteractionService records user reactions. The synchronous path applies
// the entitlement gate and the state write; the exploration model learns
// from the event asynchronously via the pipeline.
type InteractionService struct {
	store   storage.StateStore
	sink    pipeline.EventSink
	archive *storage.InteractionArchive
	logger  *logging.Logger
	now     func() time.Time
}

// NewInteractionService creates an interaction service. archive may be nil
// when no analytics warehouse is configured.
func NewInteractionService(
	store storage.StateStore,
	sink pipeline.EventSink,
	archive *storage.InteractionArchive,
	logger *logging.Logger,
) *InteractionService {
	return &InteractionService{
		store:   store,
		sink:    sink,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source for tests.
func (s *InteractionService) SetClock(now func() time.Time) {
	s.now = now
}

// InteractionRequest is one reaction write.
type InteractionRequest struct {
	UserID       string       `json:"user_id"`
	ArticleID    string       `json:"article_id"`
	Action       types.Action `json:"action"`
	DwellSeconds float64      `json:"dwell_seconds"`
}

// InteractionResponse acknowledges a reaction write with the refreshed
// entitlement, so clients can update quota UI without another round trip.
type InteractionResponse struct {
	OK          bool                `json:"ok"`
	Ignored     string              `json:"ignored,omitempty"`
	Entitlement *models.Entitlement `json:"entitlement,omitempty"`
}

// Record validates and applies one interaction write, then publishes the
// event to the pipeline.
func (s *InteractionService) Record(ctx context.Context, req *InteractionRequest) (*InteractionResponse, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user_id", "must not be empty")
	}
	if req.ArticleID == "" {
		return nil, apperrors.NewValidationError("article_id", "must not be empty")
	}
	if !req.Action.Valid() {
		return nil, apperrors.NewValidationError("action", "must be one of view, like, save, share, skip")
	}
	if req.DwellSeconds < 0 || req.DwellSeconds > 3600 {
		return nil, apperrors.NewValidationError("dwell_seconds", "must be between 0 and 3600")
	}

	user, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	// Sponsored cards are synthetic page furniture, not pool articles.
	// Reactions to them are acknowledged and discarded.
	if strings.HasPrefix(req.ArticleID, "ad-") {
		return &InteractionResponse{OK: true, Ignored: "sponsored"}, nil
	}

	article, err := s.store.GetArticle(ctx, req.ArticleID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	now := s.now().UTC()
	interaction := &models.Interaction{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		ArticleID:    article.ID,
		Action:       req.Action,
		DwellSeconds: req.DwellSeconds,
		Timestamp:    now,
	}
	if err := s.store.RecordInteraction(ctx, interaction); err != nil {
		return nil, mapStoreError(err)
	}

	event := &models.InteractionEvent{
		EventID:      interaction.EventID,
		UserID:       interaction.UserID,
		ArticleID:    interaction.ArticleID,
		Subject:      article.Subject,
		Action:       interaction.Action,
		DwellSeconds: interaction.DwellSeconds,
		Timestamp:    interaction.Timestamp,
	}
	if s.sink != nil {
		s.sink.Publish(event)
	}
	if s.archive != nil {
		if err := s.archive.Insert(ctx, event); err != nil {
			s.logger.WithError(err).WithField("event_id", event.EventID).Warn("Interaction archive write failed")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    user.ID,
		"article_id": article.ID,
		"action":     string(req.Action),
	}).Info("Interaction recorded")

	ent, err := computeEntitlement(ctx, s.store, user, now)
	if err != nil {
		return nil, err
	}
	return &InteractionResponse{OK: true, Entitlement: ent}, nil
}
