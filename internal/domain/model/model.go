// Package model contains domain models passed between layers.
package model

import "time"

// Role tags every request with the caller's capability level. Checked at
// each operation's entry; never inferred from anything else.
type Role string

// Known roles.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether the role is one of the known capability tags.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Counts is a binary-classification confusion matrix over one split.
type Counts struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Submission is one scored prediction file. Immutable once appended to the
// store; corrections are new submissions.
type Submission struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// PositiveIDs is the normalized (sorted, deduplicated) predicted-positive
	// id set from the submitted file.
	PositiveIDs []int64 `json:"positive_ids"`

	// Checksum is the content digest over PositiveIDs used for duplicate
	// detection.
	Checksum string `json:"checksum"`

	PublicScore   float64 `json:"public_score"`
	PrivateScore  float64 `json:"private_score"`
	PublicCounts  Counts  `json:"public_counts"`
	PrivateCounts Counts  `json:"private_counts"`

	// Category is the gain-threshold category of the public score.
	Category string `json:"category"`

	// Duplicate marks a resubmission of an id set this user already sent;
	// OriginalID points at the first submission carrying the checksum.
	Duplicate  bool  `json:"duplicate,omitempty"`
	OriginalID int64 `json:"original_id,omitempty"`
}

// Badge records an achievement. At most one per (user, kind) ever exists.
type Badge struct {
	UserID   string    `json:"user_id"`
	Kind     string    `json:"kind"`
	EarnedAt time.Time `json:"earned_at"`
}

// FakeEntry is a teacher-authored literal leaderboard row not backed by any
// real submission. Never scored, deduplicated, or badge-eligible.
type FakeEntry struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
}
