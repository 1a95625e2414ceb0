// Package leaderboard derives ranked views from submission history.
package leaderboard

import (
	"sort"
	"time"

	"github.com/okian/oraculus/internal/domain/model"
)

// View selects which score feeds the ranking and who may read it.
type View string

// Known views. The private view is restricted to teacher-role callers at the
// API boundary.
const (
	Public  View = "public"
	Private View = "private"
)

// Valid reports whether v names a known view.
func (v View) Valid() bool { return v == Public || v == Private }

// Entry is one derived leaderboard row. It has no lifecycle of its own;
// every Compute call rebuilds entries from the store.
type Entry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id,omitempty"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`

	// SubmissionID is the submission contributing Score (selected or best).
	// Zero for fake entries.
	SubmissionID int64 `json:"submission_id,omitempty"`

	// Aggregates shown on the private view.
	Submissions int     `json:"submissions,omitempty"`
	BestPublic  float64 `json:"best_public,omitempty"`
	BestPrivate float64 `json:"best_private,omitempty"`

	Fake bool `json:"fake,omitempty"`

	at time.Time // contributing submission timestamp, for tie-breaks
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithFakesOnPublic merges fake entries into the public view as well.
func WithFakesOnPublic(on bool) Option {
	return func(e *Engine) {
		e.fakesOnPublic = on
	}
}

// Engine computes leaderboards. Stateless apart from configuration; safe for
// concurrent use.
type Engine struct {
	fakesOnPublic bool
}

// NewEngine creates a leaderboard engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute derives the ranked leaderboard for view from the full submission
// history, per-user selections, and fake entries. Per-user score is the
// selected submission's score when a selection exists, otherwise the user's
// best. Order: score descending, ties broken by earliest contributing
// submission; fake entries rank after real ones on equal scores.
func (e *Engine) Compute(view View, subs []model.Submission, selected map[string]int64, fakes []model.FakeEntry) []Entry {
	byUser := make(map[string][]model.Submission)
	var userOrder []string
	for _, s := range subs {
		if _, ok := byUser[s.UserID]; !ok {
			userOrder = append(userOrder, s.UserID)
		}
		byUser[s.UserID] = append(byUser[s.UserID], s)
	}

	entries := make([]Entry, 0, len(byUser)+len(fakes))
	for _, uid := range userOrder {
		entries = append(entries, e.entryFor(view, byUser[uid], selected[uid]))
	}

	if view == Private || e.fakesOnPublic {
		for _, f := range fakes {
			entries = append(entries, Entry{
				DisplayName: f.Name,
				Score:       f.Score,
				Fake:        true,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Fake != b.Fake {
			return !a.Fake // real entries win ties against fakes
		}
		if a.Fake {
			return a.DisplayName < b.DisplayName
		}
		return a.at.Before(b.at)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// entryFor folds one user's history into their leaderboard row.
func (e *Engine) entryFor(view View, subs []model.Submission, selectedID int64) Entry {
	contributing := subs[0]
	if selectedID != 0 {
		for _, s := range subs {
			if s.ID == selectedID {
				contributing = s
				break
			}
		}
	} else {
		for _, s := range subs[1:] {
			if scoreFor(view, s) > scoreFor(view, contributing) {
				contributing = s
			}
		}
	}

	return Entry{
		UserID:       contributing.UserID,
		DisplayName:  contributing.UserName,
		Score:        scoreFor(view, contributing),
		SubmissionID: contributing.ID,
		Submissions:  len(subs),
		BestPublic:   bestOf(subs, Public),
		BestPrivate:  bestOf(subs, Private),
		at:           contributing.CreatedAt,
	}
}

func bestOf(subs []model.Submission, view View) float64 {
	best := scoreFor(view, subs[0])
	for _, s := range subs[1:] {
		if v := scoreFor(view, s); v > best {
			best = v
		}
	}
	return best
}

func scoreFor(view View, s model.Submission) float64 {
	if view == Private {
		return s.PrivateScore
	}
	return s.PublicScore
}

// RealRank returns userID's rank counting real users only, so teacher-made
// fake entries can never push a student out of a top-N badge. Zero when the
// user is absent.
func RealRank(entries []Entry, userID string) int {
	rank := 0
	for _, e := range entries {
		if e.Fake {
			continue
		}
		rank++
		if e.UserID == userID {
			return rank
		}
	}
	return 0
}
