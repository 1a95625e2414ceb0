// Package repository defines the submission store interface and errors.
package repository

import (
	"context"

	"github.com/okian/oraculus/internal/domain/model"
)

// Store is the append-only source of truth for submissions plus the small
// mutable satellites derived state depends on: per-user selections, badge
// records, and fake leaderboard entries.
//
// Submissions are never mutated or deleted after Append; ids increase
// monotonically and insertion order is the only ordering.
type Store interface {
	// Append records a scored submission and returns its assigned id.
	Append(ctx context.Context, sub model.Submission) (int64, error)

	// Get returns one submission by id. ErrNotFound if unknown.
	Get(ctx context.Context, id int64) (model.Submission, error)

	// ByUser returns the user's submissions in insertion order.
	ByUser(ctx context.Context, userID string) ([]model.Submission, error)

	// All returns every submission in insertion order.
	All(ctx context.Context) ([]model.Submission, error)

	// Count returns the number of stored submissions.
	Count(ctx context.Context) int

	// SetSelected points the user's leaderboard entry at one of their own
	// submissions. ErrInvalidSelection when the submission does not exist
	// or belongs to someone else.
	SetSelected(ctx context.Context, userID string, submissionID int64) error

	// SelectedFor returns the user's selection, ok=false when unselected.
	SelectedFor(ctx context.Context, userID string) (int64, bool, error)

	// Selections returns every user's selection pointer.
	Selections(ctx context.Context) (map[string]int64, error)

	// AwardBadge records a badge. Returns false without error when the
	// (user, kind) pair already exists.
	AwardBadge(ctx context.Context, b model.Badge) (bool, error)

	// BadgesFor returns the user's badges, most recent first.
	BadgesFor(ctx context.Context, userID string) ([]model.Badge, error)

	// UpsertFake adds or replaces a fake entry by name.
	UpsertFake(ctx context.Context, f model.FakeEntry) error

	// RemoveFake deletes a fake entry. ErrNotFound if absent.
	RemoveFake(ctx context.Context, name string) error

	// Fakes returns all fake entries in name order.
	Fakes(ctx context.Context) ([]model.FakeEntry, error)

	// Atomic runs fn against a view of the store whose writes commit
	// together or not at all. Durable implementations bind fn to one
	// transaction; the in-memory store applies fn directly.
	Atomic(ctx context.Context, fn func(Store) error) error

	// Close releases store resources.
	Close() error
}
