package ranking

import (
	"math"
	"sync"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// actionRewardBase anchors the reward signal per action type.
var actionRewardBase = map[types.Action]float64{
	types.ActionView:  0.35,
	types.ActionLike:  0.75,
	types.ActionSave:  0.85,
	types.ActionShare: 1.0,
	types.ActionSkip:  0.05,
}

// InteractionReward maps an action and dwell time to a reward in [0, 1.2].
// Skips are scaled down hard so they barely reinforce a subject.
func InteractionReward(action types.Action, dwellSeconds float64) float64 {
	dwellComponent := math.Min(dwellSeconds/120.0, 1.0)
	reward := 0.65*actionRewardBase[action] + 0.35*dwellComponent
	if action == types.ActionSkip {
		reward *= 0.35
	}
	return math.Max(0.0, math.Min(1.2, reward))
}

type explorationStat struct {
	pulls     int
	rewardSum float64
}

// userExplorationStats is one user's pull counts and reward sums. All
// mutation happens under mu so the consumer and readers never race.
type userExplorationStats struct {
	mu      sync.Mutex
	stats   map[types.Subject]*explorationStat
	applied map[string]struct{}
}

// ExplorationModel maintains per-(user, subject) pull counts and reward
// estimates. Stats are updated only by the event pipeline consumer; the
// request path just reads scores. Redelivered events are dropped by their
// event ID, so at-least-once delivery never double-counts.
type ExplorationModel struct {
	cfg *config.RankingConfig

	mu    sync.RWMutex
	users map[string]*userExplorationStats
}

// NewExplorationModel creates an empty exploration model.
func NewExplorationModel(cfg *config.RankingConfig) *ExplorationModel {
	return &ExplorationModel{
		cfg:   cfg,
		users: make(map[string]*userExplorationStats),
	}
}

func (m *ExplorationModel) userStats(userID string) *userExplorationStats {
	m.mu.RLock()
	us, ok := m.users[userID]
	m.mu.RUnlock()
	if ok {
		return us
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if us, ok = m.users[userID]; ok {
		return us
	}
	us = &userExplorationStats{
		stats:   make(map[types.Subject]*explorationStat),
		applied: make(map[string]struct{}),
	}
	m.users[userID] = us
	return us
}

// Apply folds one interaction event into the user's stats. Returns false
// for a duplicate event ID (redelivery), which leaves the stats untouched.
func (m *ExplorationModel) Apply(event *models.InteractionEvent) bool {
	us := m.userStats(event.UserID)
	us.mu.Lock()
	defer us.mu.Unlock()

	if _, dup := us.applied[event.EventID]; dup {
		return false
	}
	us.applied[event.EventID] = struct{}{}

	stat, ok := us.stats[event.Subject]
	if !ok {
		stat = &explorationStat{}
		us.stats[event.Subject] = stat
	}
	stat.pulls++
	stat.rewardSum += InteractionReward(event.Action, event.DwellSeconds)
	return true
}

// ScoresFor returns normalized exploration scores and raw pull counts
// across all subjects for the user. Unobserved subjects get the prior mean
// plus the maximal uncertainty bonus, so novel subjects are never starved.
// With zero history every subject scores equally.
func (m *ExplorationModel) ScoresFor(userID string) (map[types.Subject]float64, map[types.Subject]int) {
	us := m.userStats(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	totalPulls := 0
	for _, stat := range us.stats {
		totalPulls += stat.pulls
	}

	raw := make(map[types.Subject]float64, len(types.Subjects()))
	pulls := make(map[types.Subject]int, len(types.Subjects()))
	sum := 0.0
	for _, subject := range types.Subjects() {
		p := 0
		mean := m.cfg.PriorMeanReward
		if stat, ok := us.stats[subject]; ok && stat.pulls > 0 {
			p = stat.pulls
			mean = stat.rewardSum / float64(stat.pulls)
		}
		bonus := m.cfg.ExplorationC * math.Sqrt(math.Log(float64(totalPulls)+1)/float64(p+1))
		score := mean + bonus
		raw[subject] = score
		pulls[subject] = p
		sum += score
	}

	if sum <= 0 {
		uniform := 1.0 / float64(len(types.Subjects()))
		for subject := range raw {
			raw[subject] = uniform
		}
		return raw, pulls
	}
	for subject := range raw {
		raw[subject] /= sum
	}
	return raw, pulls
}

// PullCount reports the raw pull count for one (user, subject) pair.
func (m *ExplorationModel) PullCount(userID string, subject types.Subject) int {
	us := m.userStats(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	if stat, ok := us.stats[subject]; ok {
		return stat.pulls
	}
	return 0
}
