// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"time"
)

// Gain holds the four signed weights converting a confusion matrix into a
// single scalar score.
type Gain struct {
	TP int64 `koanf:"tp"`
	TN int64 `koanf:"tn"`
	FP int64 `koanf:"fp"`
	FN int64 `koanf:"fn"`
}

// Threshold maps a minimum score to a named category plus the message shown
// to the submitter when their score lands in it.
type Threshold struct {
	MinScore float64 `koanf:"min_score"`
	Category string  `koanf:"category"`
	Message  string  `koanf:"message"`
	Emoji    string  `koanf:"emoji"`
}

// BadgeInfo is presentation metadata for a badge kind.
type BadgeInfo struct {
	Name  string `koanf:"name"`
	Emoji string `koanf:"emoji"`
}

// Competition describes the single competition instance this process serves.
type Competition struct {
	Name        string `koanf:"name"`
	Description string `koanf:"description"`

	// Deadline is the global submission deadline in RFC3339.
	Deadline string `koanf:"deadline"`

	// TeacherBypassDeadline lets teacher-role submitters record baseline
	// submissions after the deadline.
	TeacherBypassDeadline bool `koanf:"teacher_bypass_deadline"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MasterDataPath points to the held-out labeled dataset CSV
	// (id,label,split). Loaded once at startup; a load failure is fatal.
	MasterDataPath string `koanf:"master_data_path"`

	// DBPath is the sqlite database file backing submission, badge, and
	// fake-entry history. Empty selects the in-memory store (no durability).
	DBPath string `koanf:"db_path"`

	Competition Competition `koanf:"competition"`

	Gain Gain `koanf:"gain"`

	// Thresholds categorize public scores. Order does not matter; the
	// engine sorts by min_score descending.
	Thresholds []Threshold `koanf:"thresholds"`

	// Badges maps badge kinds to display metadata.
	Badges map[string]BadgeInfo `koanf:"badges"`

	// DropUnknownIDs silently drops predicted ids absent from the master
	// dataset instead of rejecting the whole submission.
	DropUnknownIDs bool `koanf:"drop_unknown_ids"`

	// FakesOnPublic also merges teacher-authored fake entries into the
	// public leaderboard view.
	FakesOnPublic bool `koanf:"fakes_on_public"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config using defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and currently
// unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":9080",
		MasterDataPath: "master_data.csv",
		DBPath:         "",
		Competition: Competition{
			Name:                  "oraculus",
			Deadline:              time.Now().AddDate(1, 0, 0).Format(time.RFC3339),
			TeacherBypassDeadline: true,
		},
		Gain: Gain{TP: 100, TN: 10, FP: -50, FN: -100},
		Thresholds: []Threshold{
			{MinScore: 100, Category: "excellent", Message: "Excellent model!", Emoji: "🏆"},
			{MinScore: 50, Category: "good", Message: "Good work", Emoji: "👍"},
			{MinScore: 0, Category: "basic", Message: "Keep trying", Emoji: "💪"},
		},
		Badges: map[string]BadgeInfo{
			"first_submission":      {Name: "First Submission", Emoji: "🎯"},
			"first_model_selection": {Name: "First Selection", Emoji: "⭐"},
			"submissions_10":        {Name: "10 Submissions", Emoji: "🔟"},
			"submissions_50":        {Name: "50 Submissions", Emoji: "🎖️"},
			"submissions_100":       {Name: "100 Submissions", Emoji: "💯"},
			"top_5_public":          {Name: "Top 5 Public", Emoji: "🥇"},
			"high_threshold_first":  {Name: "First High Threshold", Emoji: "🚀"},
		},
		DropUnknownIDs:      false,
		FakesOnPublic:       false,
		MaxLeaderboardLimit: 100,
	}
}

// DeadlineAt parses the configured competition deadline.
func (c *Config) DeadlineAt() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Competition.Deadline)
	if err != nil {
		// Classroom configs often omit the zone; fall back to local time.
		t, err = time.ParseInLocation("2006-01-02T15:04:05", c.Competition.Deadline, time.Local)
	}
	if err != nil {
		return time.Time{}, ErrInvalidConfig
	}
	return t, nil
}
