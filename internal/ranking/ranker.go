package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/models"
	"github.com/dailylens/internal/types"
)

// Ranker blends affinity, exploration bonus, recency and deterministic
// jitter into per-article scores, then applies the bucket-mix policy and
// the exploit/explore interleave cadence.
type Ranker struct {
	cfg         *config.RankingConfig
	affinity    *AffinityModel
	exploration *ExplorationModel
}

// NewRanker creates a ranker over the given models.
func NewRanker(cfg *config.RankingConfig, affinity *AffinityModel, exploration *ExplorationModel) *Ranker {
	return &Ranker{cfg: cfg, affinity: affinity, exploration: exploration}
}

// Exploration exposes the exploration model for the pipeline consumer.
func (r *Ranker) Exploration() *ExplorationModel {
	return r.exploration
}

// recencyBoost decays with the square root of article age.
func recencyBoost(article *models.Article, now time.Time) float64 {
	return 1.0 / math.Sqrt(article.AgeDays(now)+1)
}

// BuildBundle computes the user's full ranked candidate ordering at the
// given state version. Seen articles and articles past the freshness
// cutoff are excluded. The bundle is deterministic for identical state.
func (r *Ranker) BuildBundle(
	user *models.User,
	version uint64,
	articles []*models.Article,
	interactions []*models.Interaction,
	seen map[string]struct{},
	now time.Time,
) *models.RankBundle {
	subjectOf := make(map[string]types.Subject, len(articles))
	for _, a := range articles {
		subjectOf[a.ID] = a.Subject
	}

	affinity := r.affinity.AffinityFor(interactions, subjectOf, now)
	explorationScores, pullCounts := r.exploration.ScoresFor(user.ID)

	cutoffDays := r.cfg.MaxArticleAgeDays
	if cutoffDays < 1 {
		cutoffDays = 1
	}
	freshnessCutoff := now.Add(-time.Duration(cutoffDays) * 24 * time.Hour)

	ranked := make([]models.ScoredArticle, 0, len(articles))
	for _, article := range articles {
		if _, consumed := seen[article.ID]; consumed {
			continue
		}
		if article.CreatedAt.Before(freshnessCutoff) {
			continue
		}

		exploit := r.cfg.AffinityWeight * affinity[article.Subject]
		explore := r.cfg.ExplorationWeight * explorationScores[article.Subject]
		score := exploit + explore +
			r.cfg.RecencyWeight*recencyBoost(article, now) +
			r.cfg.JitterWeight*Jitter(user.ID, article.ID, r.cfg.JitterSalt)

		ranked = append(ranked, models.ScoredArticle{
			Article:        article,
			Score:          score,
			ExploreFlagged: explore > exploit,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Article.ID < ranked[j].Article.ID
	})

	targetMix := TargetMixFor(user)
	mixed := mixByDeficit(ranked, targetMix)
	mixed = interleaveHead(mixed, r.cfg.InterleaveExploit, r.cfg.InterleaveExplore, r.cfg.InterleaveDepth)

	return &models.RankBundle{
		UserID:            user.ID,
		Version:           version,
		Affinity:          affinity,
		ExplorationScores: explorationScores,
		SubjectPullCounts: pullCounts,
		TargetMix:         targetMix,
		FocusMode:         types.NormalizeFocusMode(string(user.FocusMode)),
		Ranked:            mixed,
	}
}

// RecencyBundle is the degraded ordering used when full ranking fails:
// unseen fresh articles sorted by recency alone. Deterministic and cheap.
func (r *Ranker) RecencyBundle(
	user *models.User,
	version uint64,
	articles []*models.Article,
	seen map[string]struct{},
	now time.Time,
) *models.RankBundle {
	ranked := make([]models.ScoredArticle, 0, len(articles))
	for _, article := range articles {
		if _, consumed := seen[article.ID]; consumed {
			continue
		}
		ranked = append(ranked, models.ScoredArticle{
			Article: article,
			Score:   recencyBoost(article, now),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Article.ID < ranked[j].Article.ID
	})

	return &models.RankBundle{
		UserID:            user.ID,
		Version:           version,
		Affinity:          map[types.Subject]float64{},
		ExplorationScores: map[types.Subject]float64{},
		SubjectPullCounts: map[types.Subject]int{},
		TargetMix:         TargetMixFor(user),
		FocusMode:         types.NormalizeFocusMode(string(user.FocusMode)),
		Ranked:            ranked,
	}
}

// TextScore measures how well an article matches an explore query.
// Title matches dominate, then summary, then source.
func TextScore(article *models.Article, query string) float64 {
	q := normalizeQuery(query)
	if q == "" {
		return 0
	}
	score := 0.0
	if containsFold(article.Title, q) {
		score += 2.5
	}
	if containsFold(article.Summary, q) {
		score += 1.2
	}
	if containsFold(article.Source, q) {
		score += 0.8
	}
	return score
}

// ExploreScore combines text relevance with recency for catalog search.
func ExploreScore(article *models.Article, query string, now time.Time) float64 {
	return TextScore(article, query)*2.0 + recencyBoost(article, now)
}
