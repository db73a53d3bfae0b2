package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/dailylens/internal/errors"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/storage"
	"github.com/dailylens/internal/types"
)

// UserService handles onboarding, focus-mode changes and the referral
// program.
type UserService struct {
	store  storage.StateStore
	logger *logging.Logger
	now    func() time.Time
}

// NewUserService creates a user service.
func NewUserService(store storage.StateStore, logger *logging.Logger) *UserService {
	return &UserService{store: store, logger: logger, now: time.Now}
}

// SetClock replaces the time source for tests.
func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// UserSummary is the wire form of a user with derived quota fields.
type UserSummary struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	Tier                   types.UserTier  `json:"tier"`
	Role                   string          `json:"role"`
	FocusMode              types.FocusMode `json:"focus_mode"`
	ReferralCode           string          `json:"referral_code"`
	ReferralCount          int             `json:"referral_count"`
	MonthlyLimit           *int            `json:"monthly_limit"`
	MonthlyUsed            int             `json:"monthly_used"`
	MonthlyRemaining       *int            `json:"monthly_remaining"`
	RenewalDiscountPercent int             `json:"renewal_discount_percent"`
	ICPProfile             bool            `json:"icp_profile"`
}

func (s *UserService) summarize(user *models.User, ent *models.Entitlement) *UserSummary {
	return &UserSummary{
		ID:                     user.ID,
		Name:                   user.Name,
		Tier:                   user.Tier,
		Role:                   user.Role,
		FocusMode:              types.NormalizeFocusMode(string(user.FocusMode)),
		ReferralCode:           user.ReferralCode,
		ReferralCount:          user.ReferralCount,
		MonthlyLimit:           ent.MonthlyLimit,
		MonthlyUsed:            ent.MonthlyUsed,
		MonthlyRemaining:       ent.MonthlyRemaining,
		RenewalDiscountPercent: ent.RenewalDiscountPercent,
		ICPProfile:             user.ICP(),
	}
}

// ListUsers returns every user with current quota state.
func (s *UserService) ListUsers(ctx context.Context) ([]*UserSummary, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}

	now := s.now().UTC()
	summaries := make([]*UserSummary, 0, len(users))
	for _, user := range users {
		ent, err := computeEntitlement(ctx, s.store, user, now)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s.summarize(user, ent))
	}
	return summaries, nil
}

// OnboardRequest is a new-user signup.
type OnboardRequest struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Interests    []string `json:"interests"`
	Goal         string   `json:"goal"`
	ReferralCode string   `json:"referral_code"`
	FocusMode    string   `json:"focus_mode"`
}

// OnboardResponse carries the created user and their starting entitlement.
type OnboardResponse struct {
	OK          bool                `json:"ok"`
	User        *UserSummary        `json:"user"`
	Entitlement *models.Entitlement `json:"entitlement"`
	Message     string              `json:"message"`
}

// Onboard creates a free-tier user, crediting the inviter when a valid
// referral code is supplied.
func (s *UserService) Onboard(ctx context.Context, req *OnboardRequest) (*OnboardResponse, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) < 2 || len(name) > 80 {
		return nil, apperrors.NewValidationError("name", "must be between 2 and 80 characters")
	}
	role := strings.TrimSpace(req.Role)
	if len(role) < 2 || len(role) > 80 {
		return nil, apperrors.NewValidationError("role", "must be between 2 and 80 characters")
	}

	var inviter *models.User
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		found, err := s.store.FindUserByReferralCode(ctx, code)
		if err != nil {
			var nf *storage.NotFoundError
			if errors.As(err, &nf) {
				return nil, apperrors.NewValidationError("referral_code", "invalid referral code")
			}
			return nil, mapStoreError(err)
		}
		inviter = found
	}

	id, err := s.store.NextUserID(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:                  id,
		Name:                name,
		Tier:                types.TierFree,
		Role:                role,
		FocusMode:           types.NormalizeFocusMode(req.FocusMode),
		OnboardingCompleted: true,
		ReferralCode:        models.ReferralCodeFor(id),
		CreatedAt:           now,
	}
	if inviter != nil {
		user.ReferredBy = inviter.ID
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}
	if inviter != nil {
		if err := s.store.IncrementReferralCount(ctx, inviter.ID); err != nil {
			return nil, mapStoreError(err)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":     user.ID,
		"role":        user.Role,
		"referred_by": user.ReferredBy,
	}).Info("User onboarded")

	ent, err := computeEntitlement(ctx, s.store, user, now)
	if err != nil {
		return nil, err
	}
	return &OnboardResponse{
		OK:          true,
		User:        s.summarize(user, ent),
		Entitlement: ent,
		Message:     "Welcome to DailyLens. Your AI onboarding is complete.",
	}, nil
}

// FocusResponse acknowledges a focus-mode change.
type FocusResponse struct {
	OK        bool            `json:"ok"`
	UserID    string          `json:"user_id"`
	FocusMode types.FocusMode `json:"focus_mode"`
}

// UpdateFocus changes a user's focus mode. The write bumps the state
// version, so cached feed pages built under the old mode become stale.
func (s *UserService) UpdateFocus(ctx context.Context, userID, focusMode string) (*FocusResponse, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id", "must not be empty")
	}
	mode := types.FocusMode(strings.ToLower(strings.TrimSpace(focusMode)))
	if mode != types.FocusStrict && mode != types.FocusBalanced && mode != types.FocusDiscovery {
		return nil, apperrors.NewValidationError("focus_mode", "must be one of strict, balanced, discovery")
	}

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, mapStoreError(err)
	}
	if err := s.store.UpdateFocusMode(ctx, userID, mode); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    userID,
		"focus_mode": string(mode),
	}).Info("Focus mode updated")
	return &FocusResponse{OK: true, UserID: userID, FocusMode: mode}, nil
}

// ReferralSignupRequest simulates an invitee accepting a referral.
type ReferralSignupRequest struct {
	InviterUserID string   `json:"inviter_user_id"`
	InviteeName   string   `json:"invitee_name"`
	InviteeRole   string   `json:"invitee_role"`
	Interests     []string `json:"interests"`
}

// ReferralSignupResponse carries the new user and the inviter's updated
// referral standing.
type ReferralSignupResponse struct {
	OK                            bool         `json:"ok"`
	InviterUserID                 string       `json:"inviter_user_id"`
	InviterReferralCode           string       `json:"inviter_referral_code"`
	InviterReferralCount          int          `json:"inviter_referral_count"`
	InviterRenewalDiscountPercent int          `json:"inviter_renewal_discount_percent"`
	NewUser                       *UserSummary `json:"new_user"`
}

// SimulateReferralSignup onboards an invitee under the inviter's referral
// code and returns the inviter's refreshed discount standing.
func (s *UserService) SimulateReferralSignup(ctx context.Context, req *ReferralSignupRequest) (*ReferralSignupResponse, error) {
	if req.InviterUserID == "" {
		return nil, apperrors.NewValidationError("inviter_user_id", "must not be empty")
	}
	inviter, err := s.store.GetUser(ctx, req.InviterUserID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	role := strings.TrimSpace(req.InviteeRole)
	if role == "" {
		role = "AI Engineer"
	}
	onboarded, err := s.Onboard(ctx, &OnboardRequest{
		Name:         req.InviteeName,
		Role:         role,
		Interests:    req.Interests,
		Goal:         "Referred signup",
		ReferralCode: inviter.ReferralCode,
		FocusMode:    string(inviter.FocusMode),
	})
	if err != nil {
		return nil, err
	}

	refreshed, err := s.store.GetUser(ctx, inviter.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &ReferralSignupResponse{
		OK:                            true,
		InviterUserID:                 refreshed.ID,
		InviterReferralCode:           refreshed.ReferralCode,
		InviterReferralCount:          refreshed.ReferralCount,
		InviterRenewalDiscountPercent: refreshed.RenewalDiscountPercent(),
		NewUser:                       onboarded.User,
	}, nil
}
