// Package models provides data models for the feed engine.
package models

import (
	"strings"
	"time"

	"github.com/dailylens/internal/types"
)

// User represents a reader account.
type User struct {
	ID                  string          `json:"id" db:"id"`
	Name                string          `json:"name" db:"name"`
	Tier                types.UserTier  `json:"tier" db:"tier"`
	Role                string          `json:"role" db:"role"`
	FocusMode           types.FocusMode `json:"focus_mode" db:"focus_mode"`
	OnboardingCompleted bool            `json:"onboarding_completed" db:"onboarding_completed"`
	ReferralCode        string          `json:"referral_code" db:"referral_code"`
	ReferralCount       int             `json:"referral_count" db:"referral_count"`
	ReferredBy          string          `json:"referred_by,omitempty" db:"referred_by"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// ICP reports whether the user's role matches the product's ideal customer
// profile (AI practitioners). ICP users get a more core-heavy target mix.
func (u *User) ICP() bool {
	role := strings.ToLower(u.Role)
	for _, token := range []string{"ai", "ml", "data scientist", "machine learning", "research engineer"} {
		if strings.Contains(role, token) {
			return true
		}
	}
	return false
}

// RenewalDiscountPercent returns the referral-earned renewal discount,
// capped at 30 percent.
func (u *User) RenewalDiscountPercent() int {
	d := u.ReferralCount * 5
	if d > 30 {
		return 30
	}
	return d
}

// ReferralCodeFor derives the referral code issued to a user.
func ReferralCodeFor(userID string) string {
	return "DL-" + strings.ToUpper(userID)
}
