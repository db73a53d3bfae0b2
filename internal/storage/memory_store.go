package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// userState bundles everything that must stay consistent for one user.
// All mutation happens under mu, so a gated write can never leave a
// half-applied interaction behind and concurrent writes serialize.
type userState struct {
	mu           sync.Mutex
	user         *models.User
	interactions []*models.Interaction
	seen         map[string]struct{}
	version      uint64
}

// MemoryStore is the in-memory StateStore implementation. It is the
// authoritative store; the Postgres repositories only mirror it.
type MemoryStore struct {
	usersMu sync.RWMutex
	users   map[string]*userState

	articlesMu   sync.RWMutex
	articles     map[string]*models.Article
	articleOrder []string

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*userState),
		articles: make(map[string]*models.Article),
		now:      time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) state(userID string) (*userState, bool) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	st, ok := s.users[userID]
	return st, ok
}

// CreateUser registers a new user with an empty history and version 0.
func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user already exists: %s", user.ID)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	copied := *user
	s.users[user.ID] = &userState{
		user: &copied,
		seen: make(map[string]struct{}),
	}
	return nil
}

// GetUser returns a copy of the user record.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	st, ok := s.state(id)
	if !ok {
		return nil, &NotFoundError{Resource: "user", ID: id}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	copied := *st.user
	return &copied, nil
}

// ListUsers returns all users ordered by id.
func (s *MemoryStore) ListUsers(_ context.Context) ([]*models.User, error) {
	s.usersMu.RLock()
	states := make([]*userState, 0, len(s.users))
	for _, st := range s.users {
		states = append(states, st)
	}
	s.usersMu.RUnlock()

	out := make([]*models.User, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		copied := *st.user
		st.mu.Unlock()
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindUserByReferralCode resolves a referral code case-insensitively.
func (s *MemoryStore) FindUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.ToUpper(u.ReferralCode) == normalized {
			return u, nil
		}
	}
	return nil, &NotFoundError{Resource: "referral code", ID: code}
}

// UpdateFocusMode changes the focus mode and bumps the state version so
// every cached ranking for the user becomes unreachable.
func (s *MemoryStore) UpdateFocusMode(_ context.Context, userID string, mode types.FocusMode) error {
	st, ok := s.state(userID)
	if !ok {
		return &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.user.FocusMode = mode
	st.version++
	return nil
}

// IncrementReferralCount bumps the inviter's referral counter.
func (s *MemoryStore) IncrementReferralCount(_ context.Context, userID string) error {
	st, ok := s.state(userID)
	if !ok {
		return &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.user.ReferralCount++
	return nil
}

// NextUserID allocates the next sequential user id (u1, u2, ...).
func (s *MemoryStore) NextUserID(_ context.Context) (string, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	max := 0
	for id := range s.users {
		if n, ok := numericSuffix(id, "u"); ok && n > max {
			max = n
		}
	}
	return fmt.Sprintf("u%d", max+1), nil
}

// UpsertArticles adds articles to the pool, keeping first-seen order.
func (s *MemoryStore) UpsertArticles(_ context.Context, articles []*models.Article) error {
	s.articlesMu.Lock()
	defer s.articlesMu.Unlock()
	for _, a := range articles {
		copied := *a
		if _, exists := s.articles[a.ID]; !exists {
			s.articleOrder = append(s.articleOrder, a.ID)
		}
		s.articles[a.ID] = &copied
	}
	return nil
}

// GetArticle returns a copy of the article.
func (s *MemoryStore) GetArticle(_ context.Context, id string) (*models.Article, error) {
	s.articlesMu.RLock()
	defer s.articlesMu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, &NotFoundError{Resource: "article", ID: id}
	}
	copied := *a
	return &copied, nil
}

// ListArticles returns the article pool in insertion order.
func (s *MemoryStore) ListArticles(_ context.Context) ([]*models.Article, error) {
	s.articlesMu.RLock()
	defer s.articlesMu.RUnlock()
	out := make([]*models.Article, 0, len(s.articleOrder))
	for _, id := range s.articleOrder {
		copied := *s.articles[id]
		out = append(out, &copied)
	}
	return out, nil
}

// ReplaceArticlePool swaps the whole candidate pool.
func (s *MemoryStore) ReplaceArticlePool(_ context.Context, articles []*models.Article) error {
	s.articlesMu.Lock()
	defer s.articlesMu.Unlock()
	s.articles = make(map[string]*models.Article, len(articles))
	s.articleOrder = s.articleOrder[:0]
	for _, a := range articles {
		copied := *a
		s.articles[a.ID] = &copied
		s.articleOrder = append(s.articleOrder, a.ID)
	}
	return nil
}

// NextArticleID allocates the next sequential article id (a1, a2, ...).
func (s *MemoryStore) NextArticleID(_ context.Context) (string, error) {
	s.articlesMu.Lock()
	defer s.articlesMu.Unlock()
	max := 0
	for id := range s.articles {
		if n, ok := numericSuffix(id, "a"); ok && n > max {
			max = n
		}
	}
	return fmt.Sprintf("a%d", max+1), nil
}

// RecordInteraction applies the entitlement gate, appends the interaction,
// marks the article seen and bumps the state version as one unit under the
// user's lock. A rejected write leaves no side effects.
func (s *MemoryStore) RecordInteraction(_ context.Context, interaction *models.Interaction) error {
	st, ok := s.state(interaction.UserID)
	if !ok {
		return &NotFoundError{Resource: "user", ID: interaction.UserID}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := s.now().UTC()
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = now
	}

	// Re-touching an already consumed article never counts against the
	// quota, so it bypasses the gate.
	if _, seen := st.seen[interaction.ArticleID]; !seen {
		if limit := st.user.Tier.MonthlyLimit(); limit != nil {
			used := consumedSince(st.interactions, models.MonthStart(now))
			if used >= *limit {
				return &EntitlementExceededError{Tier: st.user.Tier, Limit: *limit, Used: used}
			}
		}
	}

	copied := *interaction
	st.interactions = append(st.interactions, &copied)
	st.seen[interaction.ArticleID] = struct{}{}
	st.version++
	return nil
}

// SeedInteractions installs historical interactions directly, bypassing
// the entitlement gate and the version bump. Demo seeding only.
func (s *MemoryStore) SeedInteractions(_ context.Context, userID string, interactions []*models.Interaction) error {
	st, ok := s.state(userID)
	if !ok {
		return &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, it := range interactions {
		copied := *it
		st.interactions = append(st.interactions, &copied)
		st.seen[it.ArticleID] = struct{}{}
	}
	return nil
}

// InteractionsFor returns the user's full interaction history.
func (s *MemoryStore) InteractionsFor(_ context.Context, userID string) ([]*models.Interaction, error) {
	st, ok := s.state(userID)
	if !ok {
		return nil, &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*models.Interaction, len(st.interactions))
	for i, it := range st.interactions {
		copied := *it
		out[i] = &copied
	}
	return out, nil
}

// IsSeen reports whether the user has interacted with the article.
func (s *MemoryStore) IsSeen(_ context.Context, userID, articleID string) (bool, error) {
	st, ok := s.state(userID)
	if !ok {
		return false, &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	_, seen := st.seen[articleID]
	return seen, nil
}

// SeenSet returns a copy of the user's seen-set.
func (s *MemoryStore) SeenSet(_ context.Context, userID string) (map[string]struct{}, error) {
	st, ok := s.state(userID)
	if !ok {
		return nil, &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]struct{}, len(st.seen))
	for id := range st.seen {
		out[id] = struct{}{}
	}
	return out, nil
}

// ConsumedThisMonth counts distinct articles interacted with in the
// current billing window.
func (s *MemoryStore) ConsumedThisMonth(_ context.Context, userID string, now time.Time) (int, error) {
	st, ok := s.state(userID)
	if !ok {
		return 0, &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return consumedSince(st.interactions, models.MonthStart(now)), nil
}

// CurrentVersion returns the user's state version.
func (s *MemoryStore) CurrentVersion(_ context.Context, userID string) (uint64, error) {
	st, ok := s.state(userID)
	if !ok {
		return 0, &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.version, nil
}

// BumpVersion increments and returns the user's state version.
func (s *MemoryStore) BumpVersion(_ context.Context, userID string) (uint64, error) {
	st, ok := s.state(userID)
	if !ok {
		return 0, &NotFoundError{Resource: "user", ID: userID}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.version++
	return st.version, nil
}

// CountsByTier summarizes the user base.
func (s *MemoryStore) CountsByTier(ctx context.Context) (map[types.UserTier]int, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := map[types.UserTier]int{
		types.TierFree:   0,
		types.TierSilver: 0,
		types.TierGold:   0,
	}
	for _, u := range users {
		out[u.Tier]++
	}
	return out, nil
}

// consumedSince counts distinct articles touched at or after the window
// start. Callers hold the user lock.
func consumedSince(interactions []*models.Interaction, windowStart time.Time) int {
	distinct := make(map[string]struct{})
	for _, it := range interactions {
		if it.Timestamp.Before(windowStart) {
			continue
		}
		distinct[it.ArticleID] = struct{}{}
	}
	return len(distinct)
}

func numericSuffix(id, prefix string) (int, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(id[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}
