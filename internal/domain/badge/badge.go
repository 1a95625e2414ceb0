// Package badge evaluates achievement predicates after accepted submissions
// and selections.
package badge

import (
	"context"

	"github.com/okian/oraculus/internal/domain/scoring"
)

// Kind names an achievement. Kinds double as configuration keys for display
// metadata.
type Kind string

// Info is display metadata for a badge kind, shown alongside awards.
type Info struct {
	Name  string
	Emoji string
}

// Known badge kinds.
const (
	FirstSubmission    Kind = "first_submission"
	FirstSelection     Kind = "first_model_selection"
	Submissions10      Kind = "submissions_10"
	Submissions50      Kind = "submissions_50"
	Submissions100     Kind = "submissions_100"
	Top5Public         Kind = "top_5_public"
	HighThresholdFirst Kind = "high_threshold_first"
)

// submission-count milestones awarded exactly at the Nth submission.
var countMilestones = map[int]Kind{
	10:  Submissions10,
	50:  Submissions50,
	100: Submissions100,
}

const topRankCutoff = 5

// Event is the state snapshot a predicate sees. The caller assembles it
// under the same lock that appended the triggering submission, so two
// concurrent submissions can never both look like a user's first.
type Event struct {
	UserID string

	// SubmissionCount is the user's total including the triggering
	// submission. Zero for selection-only events.
	SubmissionCount int

	// PublicScore of the triggering submission.
	PublicScore float64

	// PublicRank is the user's rank on the public leaderboard counting real
	// users only. Zero when unranked.
	PublicRank int

	// FirstSelection marks the user's first select call.
	FirstSelection bool

	// PriorHighReaches counts earlier submissions by this user that already
	// reached the high threshold.
	PriorHighReaches int
}

// Engine evaluates badge predicates. Stateless apart from the threshold
// table; uniqueness is enforced by the store's (user, kind) constraint.
type Engine struct {
	thresholds scoring.Thresholds
}

// NewEngine creates a badge engine over the competition's gain thresholds.
func NewEngine(thresholds scoring.Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Evaluate returns the kinds newly earned by ev. held reports kinds the user
// already owns; re-qualifying events never re-award (idempotent). Order of
// the returned kinds is fixed but carries no meaning.
func (e *Engine) Evaluate(_ context.Context, ev Event, held func(Kind) bool) []Kind {
	var earned []Kind
	award := func(k Kind) {
		if !held(k) {
			earned = append(earned, k)
		}
	}

	if ev.SubmissionCount == 1 {
		award(FirstSubmission)
	}
	if ev.FirstSelection {
		award(FirstSelection)
	}
	if kind, ok := countMilestones[ev.SubmissionCount]; ok {
		award(kind)
	}
	if ev.SubmissionCount > 0 && ev.PublicRank >= 1 && ev.PublicRank <= topRankCutoff {
		award(Top5Public)
	}
	if high, ok := e.thresholds.High(); ok {
		if ev.SubmissionCount > 0 && ev.PublicScore >= high.MinScore && ev.PriorHighReaches == 0 {
			award(HighThresholdFirst)
		}
	}
	return earned
}
