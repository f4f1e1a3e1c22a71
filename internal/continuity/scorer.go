// Package continuity implements the ContinuityScorer (spec.md §4.5): a pure
// scoring function quantifying how desirable a given RBT is for a given
// client, and the deterministic selection rule over a set of candidates.
// Shaped like the teacher's small pure-function helpers (a single exported
// entry point plus unexported arithmetic), since the teacher has no
// analogous scoring component to ground this on directly.
package continuity

import (
	"sort"
	"time"

	"github.com/slotwise/scheduling-service/internal/models"
)

const (
	recencyWindowDefault = 30 * 24 * time.Hour

	maxHistoryPoints  = 60
	maxRecencyPoints  = 30
	primaryBonus      = 10
	pointsPerSession  = 4
	recencyPerSession = 6
)

// ScoreInput bundles the history an RBT needs to be scored against.
type ScoreInput struct {
	RbtID             string
	IsPrimaryOnTeam   bool
	TotalSessionsWith int // historical non-cancelled sessions with this client
	RecentSessionsWith int // sessions with this client within the recency window
}

// Score computes a 0..100 continuity score for one RBT/client pairing.
func Score(in ScoreInput) int {
	if in.TotalSessionsWith == 0 {
		return 0
	}

	score := in.TotalSessionsWith * pointsPerSession
	if score > maxHistoryPoints {
		score = maxHistoryPoints
	}

	recency := in.RecentSessionsWith * recencyPerSession
	if recency > maxRecencyPoints {
		recency = maxRecencyPoints
	}
	score += recency

	if in.IsPrimaryOnTeam {
		score += primaryBonus
	}

	if score > 100 {
		score = 100
	}
	return score
}

// RecencyWindow returns the default 30-day lookback period for the recency
// bonus. It does not read configuration: callers that honour
// internal/config.SchedulingPolicy.ContinuityRecencyWindow pass that value
// to CountSessionsWith directly.
func RecencyWindow() time.Duration {
	return recencyWindowDefault
}

// CountSessionsWith summarizes a client's session history with a specific
// RBT into the counts Score needs, as of "now".
func CountSessionsWith(sessions []models.Session, rbtID string, now time.Time, recencyWindow time.Duration) (total, recent int) {
	cutoff := now.Add(-recencyWindow)
	for _, s := range sessions {
		if s.RbtID != rbtID || s.Status == models.SessionCancelled {
			continue
		}
		total++
		if !s.StartTime.Before(cutoff) {
			recent++
		}
	}
	return total, recent
}

// Candidate is one RBT under consideration for selection.
type Candidate struct {
	RbtID           string
	IsPrimaryOnTeam bool
	Score           int
}

// SelectionResult records the chosen RBT and the runner-ups, for
// auditability (spec.md §4.5: "Emits an RBTSelectionResult").
type SelectionResult struct {
	ChosenRbtID string
	ChosenScore int
	RunnersUp   []Candidate
}

// Select picks the highest-scoring candidate, tie-broken deterministically
// by (primary flag, lexicographic RBT id): a primary-on-team candidate
// wins a tie, and among equally-ranked non-primary candidates the
// lexicographically smallest id wins.
func Select(candidates []Candidate) SelectionResult {
	if len(candidates) == 0 {
		return SelectionResult{}
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.IsPrimaryOnTeam != b.IsPrimaryOnTeam {
			return a.IsPrimaryOnTeam
		}
		return a.RbtID < b.RbtID
	})

	return SelectionResult{
		ChosenRbtID: ranked[0].RbtID,
		ChosenScore: ranked[0].Score,
		RunnersUp:   ranked[1:],
	}
}
