package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// PostgresStore is the durable StateStore backend. Per-user write
// serialization uses row locks on the users table; RecordInteraction runs
// the gate, the append, the seen-mark and the version bump in one
// transaction so a gated write leaves nothing behind.
type PostgresStore struct {
	db  *PostgresDB
	now func() time.Time
}

// NewPostgresStore creates a Postgres-backed state store.
func NewPostgresStore(db *PostgresDB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// SetClock replaces the time source for tests.
func (s *PostgresStore) SetClock(now func() time.Time) {
	s.now = now
}

const userColumns = `id, name, tier, role, focus_mode, onboarding_completed,
	referral_code, referral_count, referred_by, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Tier,
		&u.Role,
		&u.FocusMode,
		&u.OnboardingCompleted,
		&u.ReferralCode,
		&u.ReferralCount,
		&u.ReferredBy,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user with state version 0.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, tier, role, focus_mode, onboarding_completed,
			referral_code, referral_count, referred_by, state_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)
	`
	_, err := s.db.Pool().Exec(ctx, query,
		user.ID,
		user.Name,
		user.Tier,
		user.Role,
		user.FocusMode,
		user.OnboardingCompleted,
		user.ReferralCode,
		user.ReferralCount,
		user.ReferredBy,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: "user", ID: id}
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by creation time.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	rows, err := s.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// FindUserByReferralCode looks up the owner of a referral code.
func (s *PostgresStore) FindUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`
	user, err := scanUser(s.db.Pool().QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: "referral code", ID: code}
		}
		return nil, fmt.Errorf("failed to find user by referral code: %w", err)
	}
	return user, nil
}

// UpdateFocusMode changes the focus mode and bumps the state version.
func (s *PostgresStore) UpdateFocusMode(ctx context.Context, userID string, mode types.FocusMode) error {
	query := `
		UPDATE users SET focus_mode = $2, state_version = state_version + 1
		WHERE id = $1
	`
	tag, err := s.db.Pool().Exec(ctx, query, userID, mode)
	if err != nil {
		return fmt.Errorf("failed to update focus mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Resource: "user", ID: userID}
	}
	return nil
}

// IncrementReferralCount adds one successful referral to the user.
func (s *PostgresStore) IncrementReferralCount(ctx context.Context, userID string) error {
	query := `UPDATE users SET referral_count = referral_count + 1 WHERE id = $1`
	tag, err := s.db.Pool().Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to increment referral count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Resource: "user", ID: userID}
	}
	return nil
}

// NextUserID allocates the next sequential user ID.
func (s *PostgresStore) NextUserID(ctx context.Context) (string, error) {
	query := `
		SELECT COALESCE(MAX(CAST(SUBSTRING(id FROM 2) AS INTEGER)), 0)
		FROM users WHERE id ~ '^u[0-9]+$'
	`
	var max int
	if err := s.db.Pool().QueryRow(ctx, query).Scan(&max); err != nil {
		return "", fmt.Errorf("failed to allocate user id: %w", err)
	}
	return fmt.Sprintf("u%d", max+1), nil
}

// UpsertArticles inserts or refreshes articles in the pool.
func (s *PostgresStore) UpsertArticles(ctx context.Context, articles []*models.Article) error {
	query := `
		INSERT INTO articles (id, title, subject, summary, url, source, sponsored, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			subject = EXCLUDED.subject,
			summary = EXCLUDED.summary,
			url = EXCLUDED.url,
			source = EXCLUDED.source,
			sponsored = EXCLUDED.sponsored,
			active = TRUE
	`
	for _, a := range articles {
		_, err := s.db.Pool().Exec(ctx, query,
			a.ID, a.Title, a.Subject, a.Summary, a.URL, a.Source, a.Sponsored, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert article %s: %w", a.ID, err)
		}
	}
	return nil
}

// GetArticle retrieves an article by ID.
func (s *PostgresStore) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	query := `
		SELECT id, title, subject, summary, url, source, sponsored, created_at
		FROM articles WHERE id = $1 AND active
	`
	var a models.Article
	err := s.db.Pool().QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Title, &a.Subject, &a.Summary, &a.URL, &a.Source, &a.Sponsored, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: "article", ID: id}
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return &a, nil
}

// ListArticles returns the active article pool.
func (s *PostgresStore) ListArticles(ctx context.Context) ([]*models.Article, error) {
	query := `
		SELECT id, title, subject, summary, url, source, sponsored, created_at
		FROM articles WHERE active ORDER BY created_at DESC, id
	`
	rows, err := s.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Subject, &a.Summary, &a.URL, &a.Source, &a.Sponsored, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}

// ReplaceArticlePool deactivates the current pool and installs the new one.
// Interactions referencing retired articles stay intact.
func (s *PostgresStore) ReplaceArticlePool(ctx context.Context, articles []*models.Article) error {
	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `UPDATE articles SET active = FALSE`); err != nil {
		return fmt.Errorf("failed to retire article pool: %w", err)
	}

	query := `
		INSERT INTO articles (id, title, subject, summary, url, source, sponsored, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			subject = EXCLUDED.subject,
			summary = EXCLUDED.summary,
			url = EXCLUDED.url,
			source = EXCLUDED.source,
			sponsored = EXCLUDED.sponsored,
			active = TRUE
	`
	for _, a := range articles {
		if _, err := tx.Exec(ctx, query,
			a.ID, a.Title, a.Subject, a.Summary, a.URL, a.Source, a.Sponsored, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// NextArticleID allocates the next sequential article ID.
func (s *PostgresStore) NextArticleID(ctx context.Context) (string, error) {
	query := `
		SELECT COALESCE(MAX(CAST(SUBSTRING(id FROM 2) AS INTEGER)), 0)
		FROM articles WHERE id ~ '^a[0-9]+$'
	`
	var max int
	if err := s.db.Pool().QueryRow(ctx, query).Scan(&max); err != nil {
		return "", fmt.Errorf("failed to allocate article id: %w", err)
	}
	return fmt.Sprintf("a%d", max+1), nil
}

// RecordInteraction applies the entitlement gate, the append, the seen-mark
// and the version bump in one transaction. The user row lock serializes
// concurrent writers on the same user.
func (s *PostgresStore) RecordInteraction(ctx context.Context, interaction *models.Interaction) error {
	tx, err := s.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	var tier types.UserTier
	err = tx.QueryRow(ctx,
		`SELECT tier FROM users WHERE id = $1 FOR UPDATE`, interaction.UserID,
	).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Resource: "user", ID: interaction.UserID}
		}
		return fmt.Errorf("failed to lock user: %w", err)
	}

	var seen bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seen_articles WHERE user_id = $1 AND article_id = $2)`,
		interaction.UserID, interaction.ArticleID,
	).Scan(&seen)
	if err != nil {
		return fmt.Errorf("failed to check seen set: %w", err)
	}

	// Re-touching a seen article never counts against the monthly limit.
	if !seen {
		if limit := tier.MonthlyLimit(); limit != nil {
			var used int
			err = tx.QueryRow(ctx,
				`SELECT COUNT(DISTINCT article_id) FROM interactions WHERE user_id = $1 AND ts >= $2`,
				interaction.UserID, models.MonthStart(s.now()),
			).Scan(&used)
			if err != nil {
				return fmt.Errorf("failed to count monthly consumption: %w", err)
			}
			if used >= *limit {
				return &EntitlementExceededError{Tier: tier, Limit: *limit, Used: used}
			}
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO interactions (event_id, user_id, article_id, action, dwell_seconds, ts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		interaction.EventID,
		interaction.UserID,
		interaction.ArticleID,
		interaction.Action,
		interaction.DwellSeconds,
		interaction.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO seen_articles (user_id, article_id, seen_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		interaction.UserID, interaction.ArticleID, interaction.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to mark article seen: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET state_version = state_version + 1 WHERE id = $1`,
		interaction.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump state version: %w", err)
	}

	return tx.Commit(ctx)
}

// SeedInteractions installs historical interactions directly, bypassing
// the entitlement gate and the version bump. Demo seeding only.
func (s *PostgresStore) SeedInteractions(ctx context.Context, userID string, interactions []*models.Interaction) error {
	for _, it := range interactions {
		_, err := s.db.Pool().Exec(ctx,
			`INSERT INTO interactions (event_id, user_id, article_id, action, dwell_seconds, ts)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			it.EventID, userID, it.ArticleID, it.Action, it.DwellSeconds, it.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to seed interaction: %w", err)
		}
		_, err = s.db.Pool().Exec(ctx,
			`INSERT INTO seen_articles (user_id, article_id, seen_at)
			 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			userID, it.ArticleID, it.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to seed seen mark: %w", err)
		}
	}
	return nil
}

// InteractionsFor returns the user's interaction history, oldest first.
func (s *PostgresStore) InteractionsFor(ctx context.Context, userID string) ([]*models.Interaction, error) {
	query := `
		SELECT event_id, user_id, article_id, action, dwell_seconds, ts
		FROM interactions WHERE user_id = $1 ORDER BY ts, event_id
	`
	rows, err := s.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var ints []*models.Interaction
	for rows.Next() {
		var it models.Interaction
		if err := rows.Scan(&it.EventID, &it.UserID, &it.ArticleID, &it.Action, &it.DwellSeconds, &it.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		ints = append(ints, &it)
	}
	return ints, rows.Err()
}

// IsSeen reports whether the user has interacted with the article.
func (s *PostgresStore) IsSeen(ctx context.Context, userID, articleID string) (bool, error) {
	var seen bool
	err := s.db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seen_articles WHERE user_id = $1 AND article_id = $2)`,
		userID, articleID,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("failed to check seen set: %w", err)
	}
	return seen, nil
}

// SeenSet returns the user's full seen set.
func (s *PostgresStore) SeenSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.Pool().Query(ctx,
		`SELECT article_id FROM seen_articles WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen set: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan seen article: %w", err)
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

// ConsumedThisMonth counts distinct articles touched in the current
// calendar-month billing window.
func (s *PostgresStore) ConsumedThisMonth(ctx context.Context, userID string, now time.Time) (int, error) {
	var used int
	err := s.db.Pool().QueryRow(ctx,
		`SELECT COUNT(DISTINCT article_id) FROM interactions WHERE user_id = $1 AND ts >= $2`,
		userID, models.MonthStart(now),
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to count monthly consumption: %w", err)
	}
	return used, nil
}

// CurrentVersion returns the user's state version.
func (s *PostgresStore) CurrentVersion(ctx context.Context, userID string) (uint64, error) {
	var version uint64
	err := s.db.Pool().QueryRow(ctx,
		`SELECT state_version FROM users WHERE id = $1`, userID,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &NotFoundError{Resource: "user", ID: userID}
		}
		return 0, fmt.Errorf("failed to load state version: %w", err)
	}
	return version, nil
}

// BumpVersion increments the user's state version and returns the new value.
func (s *PostgresStore) BumpVersion(ctx context.Context, userID string) (uint64, error) {
	var version uint64
	err := s.db.Pool().QueryRow(ctx,
		`UPDATE users SET state_version = state_version + 1 WHERE id = $1 RETURNING state_version`,
		userID,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &NotFoundError{Resource: "user", ID: userID}
		}
		return 0, fmt.Errorf("failed to bump state version: %w", err)
	}
	return version, nil
}

// CountsByTier summarizes the user base for the monitoring dashboard.
func (s *PostgresStore) CountsByTier(ctx context.Context) (map[types.UserTier]int, error) {
	rows, err := s.db.Pool().Query(ctx, `SELECT tier, COUNT(*) FROM users GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users by tier: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.UserTier]int)
	for rows.Next() {
		var tier types.UserTier
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}
