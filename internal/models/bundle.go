package models

import (
	"github.com/dailylens/internal/types"
)

// ScoredArticle is one ranked candidate with its blended score.
type ScoredArticle struct {
	Article *Article `json:"article"`
	Score   float64  `json:"score"`
	// ExploreFlagged marks candidates whose exploration component exceeds
	// their affinity component; the interleave cadence draws from these.
	ExploreFlagged bool `json:"explore_flagged"`
}

// RankBundle is a user's full ranked candidate ordering at one state
// version, precomputed once and sliced for pagination. Feed pages are cuts
// of Ranked; the diagnostic maps ride along for the response payload.
type RankBundle struct {
	UserID            string                        `json:"user_id"`
	Version           uint64                        `json:"version"`
	Affinity          map[types.Subject]float64     `json:"affinity"`
	ExplorationScores map[types.Subject]float64     `json:"exploration_scores"`
	SubjectPullCounts map[types.Subject]int         `json:"subject_pull_counts"`
	TargetMix         map[types.TopicBucket]float64 `json:"target_mix"`
	FocusMode         types.FocusMode               `json:"focus_mode"`
	Ranked            []ScoredArticle               `json:"ranked"`
}
