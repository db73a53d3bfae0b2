package models

import (
	"time"

	"github.com/dailylens/internal/types"
)

// Article represents one item of the candidate content pool. Articles are
// immutable once created except for pool membership.
type Article struct {
	ID        string        `json:"id" db:"id"`
	Title     string        `json:"title" db:"title"`
	Subject   types.Subject `json:"subject" db:"subject"`
	Summary   string        `json:"summary" db:"summary"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	URL       string        `json:"url" db:"url"`
	Source    string        `json:"source" db:"source"`
	Sponsored bool          `json:"is_sponsored" db:"sponsored"`
}

// AgeDays returns the article age in fractional days at the given instant.
func (a *Article) AgeDays(now time.Time) float64 {
	age := now.Sub(a.CreatedAt).Seconds() / 86400.0
	if age < 0 {
		return 0
	}
	return age
}
