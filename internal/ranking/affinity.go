// Package ranking implements the scoring pipeline: subject affinity from
// interaction history, bandit-style exploration bonuses, deterministic
// jitter and the bucket-mix ranker that assembles the final ordering.
package ranking

import (
	"math"
	"time"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// actionAffinityWeights is the exploit signal each action contributes.
// Skip is negative so skipped subjects sink.
var actionAffinityWeights = map[types.Action]float64{
	types.ActionView:  1.0,
	types.ActionLike:  2.8,
	types.ActionSave:  2.4,
	types.ActionShare: 3.0,
	types.ActionSkip:  -1.7,
}

// AffinityModel derives per-subject preference scores from interaction
// history. Deterministic given the same history; no internal state.
type AffinityModel struct {
	cfg *config.RankingConfig
}

// NewAffinityModel creates an affinity model with the given tuning.
func NewAffinityModel(cfg *config.RankingConfig) *AffinityModel {
	return &AffinityModel{cfg: cfg}
}

// AffinityFor computes the user's normalized subject affinity. Each
// interaction contributes its action weight scaled by a dwell signal and
// decayed by age, so recent behavior dominates. The result is shifted
// positive and normalized to sum to 1 across subjects.
func (m *AffinityModel) AffinityFor(
	interactions []*models.Interaction,
	subjectOf map[string]types.Subject,
	now time.Time,
) map[types.Subject]float64 {
	affinity := make(map[types.Subject]float64, len(types.Subjects()))
	for _, subject := range types.Subjects() {
		affinity[subject] = 0.1
	}

	halfLife := m.cfg.HalfLifeDays
	if halfLife <= 0 {
		halfLife = 1e-6
	}

	for _, it := range interactions {
		ageDays := now.Sub(it.Timestamp).Seconds() / 86400.0
		if ageDays < 0 {
			ageDays = 0
		}
		if ageDays > float64(m.cfg.MaxInteractionDays) {
			continue
		}
		subject, ok := subjectOf[it.ArticleID]
		if !ok {
			continue
		}
		dwellSignal := math.Min(it.DwellSeconds/45.0, 3.0)
		decay := math.Pow(0.5, ageDays/halfLife)
		affinity[subject] += actionAffinityWeights[it.Action] * (0.75 + dwellSignal) * decay
	}

	// Skips can drag a subject negative; shift so normalization is sane.
	min := math.Inf(1)
	for _, v := range affinity {
		if v < min {
			min = v
		}
	}
	if min <= 0 {
		shift := math.Abs(min) + 0.2
		for k := range affinity {
			affinity[k] += shift
		}
	}

	total := 0.0
	for _, v := range affinity {
		total += v
	}
	for k := range affinity {
		affinity[k] /= total
	}
	return affinity
}
