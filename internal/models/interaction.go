package models

import (
	"time"

	"github.com/dailylens/internal/types"
)

// Interaction is one user reaction to an article. Interactions are
// append-only; they are never mutated or deleted.
type Interaction struct {
	EventID      string       `json:"event_id" db:"event_id"`
	UserID       string       `json:"user_id" db:"user_id"`
	ArticleID    string       `json:"article_id" db:"article_id"`
	Action       types.Action `json:"action" db:"action"`
	DwellSeconds float64      `json:"dwell_seconds" db:"dwell_seconds"`
	Timestamp    time.Time    `json:"ts" db:"ts"`
}

// InteractionEvent is the wire form published to the event pipeline after a
// synchronous interaction write succeeds. EventID is the consumer's dedup key.
type InteractionEvent struct {
	EventID      string       `json:"event_id"`
	UserID       string       `json:"user_id"`
	ArticleID    string       `json:"article_id"`
	Subject      types.Subject `json:"subject"`
	Action       types.Action `json:"action"`
	DwellSeconds float64      `json:"dwell_seconds"`
	Timestamp    time.Time    `json:"ts"`
}
