package models

import (
	"time"

	"github.com/dailylens/internal/types"
)

// Entitlement is the derived tier quota state gating consumption. It is
// recomputed from the user record and the current billing window's
// interactions on every read; it is never stored.
type Entitlement struct {
	Tier                   types.UserTier `json:"tier"`
	MonthlyLimit           *int           `json:"monthly_limit"` // nil = unlimited
	MonthlyUsed            int            `json:"monthly_used"`
	MonthlyRemaining       *int           `json:"monthly_remaining"` // nil = unlimited
	CanConsume             bool           `json:"can_consume"`
	AdEnabled              bool           `json:"ad_enabled"`
	BillingWindowStart     string         `json:"billing_window_start"`
	ReferralCode           string         `json:"referral_code"`
	ReferralCount          int            `json:"referral_count"`
	RenewalDiscountPercent int            `json:"renewal_discount_percent"`
}

// ComputeEntitlement derives the entitlement for a user given the number of
// distinct articles consumed in the current billing window.
func ComputeEntitlement(user *User, usedThisMonth int, now time.Time) *Entitlement {
	limit := user.Tier.MonthlyLimit()
	ent := &Entitlement{
		Tier:                   user.Tier,
		MonthlyLimit:           limit,
		MonthlyUsed:            usedThisMonth,
		CanConsume:             true,
		AdEnabled:              user.Tier == types.TierFree,
		BillingWindowStart:     MonthStart(now).Format("2006-01-02"),
		ReferralCode:           user.ReferralCode,
		ReferralCount:          user.ReferralCount,
		RenewalDiscountPercent: user.RenewalDiscountPercent(),
	}
	if limit != nil {
		remaining := *limit - usedThisMonth
		if remaining < 0 {
			remaining = 0
		}
		ent.MonthlyRemaining = &remaining
		ent.CanConsume = remaining > 0
	}
	return ent
}

// MonthStart returns the start of the calendar-month billing window
// containing the given instant, in UTC.
func MonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
