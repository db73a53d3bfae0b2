package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// InteractionArchive mirrors interaction events into ClickHouse for
// analytics. Archive writes are best-effort; the synchronous interaction
// path never depends on them.
type InteractionArchive struct {
	db *ClickHouseDB
}

// NewInteractionArchive creates a new interaction archive
func NewInteractionArchive(db *ClickHouseDB) *InteractionArchive {
	return &InteractionArchive{db: db}
}

// EnsureSchema creates the archive table if it does not exist.
func (r *InteractionArchive) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS interaction_events (
			event_id String,
			user_id String,
			article_id String,
			subject String,
			action String,
			dwell_seconds Float64,
			ts DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (user_id, ts)
	`
	if err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create interaction_events table: %w", err)
	}
	return nil
}

// Insert archives a single interaction event
func (r *InteractionArchive) Insert(ctx context.Context, event *models.InteractionEvent) error {
	query := `
		INSERT INTO interaction_events (event_id, user_id, article_id, subject, action, dwell_seconds, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err := r.db.Conn().Exec(ctx, query,
		event.EventID,
		event.UserID,
		event.ArticleID,
		string(event.Subject),
		string(event.Action),
		event.DwellSeconds,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to archive interaction event: %w", err)
	}
	return nil
}

// BatchInsert archives multiple interaction events in a batch
func (r *InteractionArchive) BatchInsert(ctx context.Context, events []*models.InteractionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO interaction_events (event_id, user_id, article_id, subject, action, dwell_seconds, ts)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.UserID,
			event.ArticleID,
			string(event.Subject),
			string(event.Action),
			event.DwellSeconds,
			event.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to append event to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// ActionCountsSince aggregates archived events by action for the dashboard.
func (r *InteractionArchive) ActionCountsSince(ctx context.Context, since time.Time) (map[types.Action]uint64, error) {
	query := `
		SELECT action, COUNT(*) FROM interaction_events
		WHERE ts >= ? GROUP BY action
	`
	rows, err := r.db.Conn().Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query action counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.Action]uint64)
	for rows.Next() {
		var action string
		var n uint64
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan action count: %w", err)
		}
		counts[types.Action(action)] = n
	}
	return counts, rows.Err()
}
