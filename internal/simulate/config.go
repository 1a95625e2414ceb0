package simulate

import "time"

// Config holds configuration for one simulation run.
type Config struct {
	BaseURL        string        // Base URL of the service
	MasterPath     string        // Master dataset CSV, shared with the server
	Students       int           // Number of synthetic students
	SubmissionsPer int           // Submissions per student
	TopN           int           // Leaderboard entries to fetch
	Workers        int           // Number of concurrent workers
	Timeout        time.Duration // HTTP request timeout
	LogFile        string        // Log file for simulation output
	Verbose        bool          // Enable verbose logging
}

// Submission is one generated prediction upload.
type Submission struct {
	UserID   string
	UserName string
	Name     string
	Body     string  // single-column CSV of predicted-positive ids
	Expected float64 // public score computed locally from the master
}

// ackResponse mirrors the submission acknowledgment shape.
type ackResponse struct {
	SubmissionID int64   `json:"submission_id"`
	PublicScore  float64 `json:"public_score"`
	Category     string  `json:"category"`
	Duplicate    bool    `json:"duplicate"`
}

// boardEntry mirrors the leaderboard entry shape.
type boardEntry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
	Fake        bool    `json:"fake"`
}

// Stats holds simulation statistics.
type Stats struct {
	Generated          int
	Submitted          int
	Accepted           int
	Duplicate          int
	Failed             int
	ScoreMismatches    int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
