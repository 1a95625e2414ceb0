package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/okian/oraculus/internal/domain/model"
	"github.com/okian/oraculus/pkg/metrics"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const createdAtFormat = time.RFC3339Nano

// dbtx is the statement surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is the durable Store. Submission, badge, and fake-entry
// history survive restarts; reloading yields identical leaderboard state.
// Statements run through q so Atomic can rebind the store to a transaction.
type SQLiteStore struct {
	db *sql.DB
	q  dbtx
}

// NewSQLiteStore opens (creating if needed) the sqlite database at path and
// applies pending migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// A single writer keeps appends serialized at the driver level too.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

// Atomic runs fn against a transaction-bound view of the store, committing
// only when fn returns nil. A nested call inside fn joins the open
// transaction instead of starting another.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if _, open := s.q.(*sql.Tx); open {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Append records a scored submission and returns its assigned id.
func (s *SQLiteStore) Append(ctx context.Context, sub model.Submission) (int64, error) {
	start := time.Now()

	ids, err := json.Marshal(sub.PositiveIDs)
	if err != nil {
		return 0, fmt.Errorf("marshal positive ids: %w", err)
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO submissions (
			user_id, user_name, role, name, created_at, positive_ids, checksum,
			public_score, private_score,
			public_tp, public_tn, public_fp, public_fn,
			private_tp, private_tn, private_fp, private_fn,
			category, duplicate, original_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.UserName, string(sub.Role), sub.Name,
		sub.CreatedAt.UTC().Format(createdAtFormat), string(ids), sub.Checksum,
		sub.PublicScore, sub.PrivateScore,
		sub.PublicCounts.TP, sub.PublicCounts.TN, sub.PublicCounts.FP, sub.PublicCounts.FN,
		sub.PrivateCounts.TP, sub.PrivateCounts.TN, sub.PrivateCounts.FP, sub.PrivateCounts.FN,
		sub.Category, boolToInt(sub.Duplicate), sub.OriginalID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("submission id: %w", err)
	}

	metrics.RecordStoreAppendLatency(float64(time.Since(start).Milliseconds()))
	return id, nil
}

const submissionColumns = `
	id, user_id, user_name, role, name, created_at, positive_ids, checksum,
	public_score, private_score,
	public_tp, public_tn, public_fp, public_fn,
	private_tp, private_tn, private_fp, private_fn,
	category, duplicate, original_id`

func scanSubmission(row interface{ Scan(...any) error }) (model.Submission, error) {
	var (
		sub       model.Submission
		role      string
		createdAt string
		ids       string
		duplicate int
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.UserName, &role, &sub.Name, &createdAt, &ids, &sub.Checksum,
		&sub.PublicScore, &sub.PrivateScore,
		&sub.PublicCounts.TP, &sub.PublicCounts.TN, &sub.PublicCounts.FP, &sub.PublicCounts.FN,
		&sub.PrivateCounts.TP, &sub.PrivateCounts.TN, &sub.PrivateCounts.FP, &sub.PrivateCounts.FN,
		&sub.Category, &duplicate, &sub.OriginalID,
	)
	if err != nil {
		return model.Submission{}, err
	}
	sub.Role = model.Role(role)
	sub.Duplicate = duplicate != 0
	if sub.CreatedAt, err = time.Parse(createdAtFormat, createdAt); err != nil {
		return model.Submission{}, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &sub.PositiveIDs); err != nil {
		return model.Submission{}, fmt.Errorf("unmarshal positive ids: %w", err)
	}
	return sub, nil
}

// Get returns one submission by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (model.Submission, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Submission{}, fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) querySubmissions(ctx context.Context, query string, args ...any) ([]model.Submission, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// ByUser returns the user's submissions in insertion order.
func (s *SQLiteStore) ByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	return s.querySubmissions(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE user_id = ? ORDER BY id`, userID)
}

// All returns every submission in insertion order.
func (s *SQLiteStore) All(ctx context.Context) ([]model.Submission, error) {
	return s.querySubmissions(ctx,
		`SELECT `+submissionColumns+` FROM submissions ORDER BY id`)
}

// Count returns the number of stored submissions.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// SetSelected points the user's leaderboard entry at their own submission.
func (s *SQLiteStore) SetSelected(ctx context.Context, userID string, submissionID int64) error {
	var owner string
	err := s.q.QueryRowContext(ctx,
		`SELECT user_id FROM submissions WHERE id = ?`, submissionID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return fmt.Errorf("submission %d for user %s: %w", submissionID, userID, ErrInvalidSelection)
	}
	if err != nil {
		return fmt.Errorf("check selection: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO selections (user_id, submission_id) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET submission_id = excluded.submission_id`,
		userID, submissionID)
	if err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	return nil
}

// SelectedFor returns the user's selection pointer.
func (s *SQLiteStore) SelectedFor(ctx context.Context, userID string) (int64, bool, error) {
	var id int64
	err := s.q.QueryRowContext(ctx,
		`SELECT submission_id FROM selections WHERE user_id = ?`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get selection: %w", err)
	}
	return id, true, nil
}

// Selections returns every selection pointer.
func (s *SQLiteStore) Selections(ctx context.Context) (map[string]int64, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT user_id, submission_id FROM selections`)
	if err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var uid string
		var id int64
		if err := rows.Scan(&uid, &id); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		out[uid] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}
	return out, nil
}

// AwardBadge records a badge; the UNIQUE(user_id, kind) constraint enforces
// at most one per pair.
func (s *SQLiteStore) AwardBadge(ctx context.Context, b model.Badge) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO badges (user_id, kind, earned_at) VALUES (?, ?, ?)`,
		b.UserID, b.Kind, b.EarnedAt.UTC().Format(createdAtFormat))
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	return n > 0, nil
}

// BadgesFor returns the user's badges, most recent first.
func (s *SQLiteStore) BadgesFor(ctx context.Context, userID string) ([]model.Badge, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT user_id, kind, earned_at FROM badges
		WHERE user_id = ? ORDER BY earned_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query badges: %w", err)
	}
	defer rows.Close()

	var out []model.Badge
	for rows.Next() {
		var b model.Badge
		var earned string
		if err := rows.Scan(&b.UserID, &b.Kind, &earned); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		if b.EarnedAt, err = time.Parse(createdAtFormat, earned); err != nil {
			return nil, fmt.Errorf("parse earned_at: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badges: %w", err)
	}
	return out, nil
}

// UpsertFake adds or replaces a fake entry by name.
func (s *SQLiteStore) UpsertFake(ctx context.Context, f model.FakeEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO fake_entries (name, score, category) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET score = excluded.score, category = excluded.category`,
		f.Name, f.Score, f.Category)
	if err != nil {
		return fmt.Errorf("upsert fake entry: %w", err)
	}
	return nil
}

// RemoveFake deletes a fake entry.
func (s *SQLiteStore) RemoveFake(ctx context.Context, name string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM fake_entries WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("remove fake entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove fake entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("fake entry %q: %w", name, ErrNotFound)
	}
	return nil
}

// Fakes returns all fake entries in name order.
func (s *SQLiteStore) Fakes(ctx context.Context) ([]model.FakeEntry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT name, score, category FROM fake_entries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query fake entries: %w", err)
	}
	defer rows.Close()

	var out []model.FakeEntry
	for rows.Next() {
		var f model.FakeEntry
		if err := rows.Scan(&f.Name, &f.Score, &f.Category); err != nil {
			return nil, fmt.Errorf("scan fake entry: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fake entries: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite db: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
