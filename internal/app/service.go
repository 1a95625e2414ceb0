// Package service provides the core competition engine that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/oraculus/internal/adapters/repository"
	"github.com/okian/oraculus/internal/domain/badge"
	"github.com/okian/oraculus/internal/domain/dataset"
	"github.com/okian/oraculus/internal/domain/dedupe"
	"github.com/okian/oraculus/internal/domain/leaderboard"
	"github.com/okian/oraculus/internal/domain/model"
	"github.com/okian/oraculus/internal/domain/parse"
	"github.com/okian/oraculus/internal/domain/scoring"
	"github.com/okian/oraculus/pkg/logger"
	"github.com/okian/oraculus/pkg/metrics"
)

// SubmitRequest carries one incoming prediction file plus requester
// metadata from the transport collaborator.
type SubmitRequest struct {
	UserID   string
	UserName string
	Role     model.Role
	Name     string
	Raw      []byte

	// Now is the arrival timestamp. Zero means "ask the injected clock".
	Now time.Time
}

// SubmitResult reports the outcome of an accepted submission. The API layer
// decides which fields each role may see.
type SubmitResult struct {
	SubmissionID  int64
	PublicScore   float64
	PrivateScore  float64
	PublicCounts  model.Counts
	PrivateCounts model.Counts
	Category      scoring.Threshold
	Positives     int
	Duplicate     bool
	OriginalID    int64
	NewBadges     []AwardedBadge
}

// AwardedBadge is a badge record joined with its configured display
// metadata. Name falls back to the kind when no metadata is configured.
type AwardedBadge struct {
	Kind     string    `json:"kind"`
	Name     string    `json:"name"`
	Emoji    string    `json:"emoji,omitempty"`
	EarnedAt time.Time `json:"earned_at"`
}

// SubmissionSummary is one row of a user's own submission listing.
type SubmissionSummary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	PublicScore float64   `json:"public_score"`
	Category    string    `json:"category"`
	Duplicate   bool      `json:"duplicate,omitempty"`
	Selected    bool      `json:"selected,omitempty"`
}

// snapshotter is implemented by stores that can serialize their full state.
type snapshotter interface {
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) error
}

// Service is the competition engine. One write lock serializes submission
// appends, selections, and badge awards so concurrent submissions observe a
// linearized history; reads recompute from the append-only store and never
// see a partially applied submission.
type Service struct {
	mu sync.RWMutex

	store  repository.Store
	master *dataset.Master

	scorer     *scoring.Scorer
	thresholds scoring.Thresholds
	index      *dedupe.Index
	badges     *badge.Engine
	lb         *leaderboard.Engine

	now           func() time.Time
	deadline      time.Time
	teacherBypass bool

	gain        scoring.Matrix
	dropUnknown bool
	fakesPublic bool
	badgeInfo   map[string]badge.Info

	// version counts accepted mutations; leaderboard consumers can use it
	// to detect staleness instead of caching entries.
	version atomic.Uint64

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the submission store. Required.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithMaster sets the master dataset snapshot. Required.
func WithMaster(m *dataset.Master) Option {
	return func(s *Service) {
		s.master = m
	}
}

// WithGain sets the gain matrix.
func WithGain(g scoring.Matrix) Option {
	return func(s *Service) {
		s.gain = g
	}
}

// WithThresholds sets the gain thresholds.
func WithThresholds(t []scoring.Threshold) Option {
	return func(s *Service) {
		s.thresholds = scoring.NewThresholds(t)
	}
}

// WithDeadline sets the global submission deadline.
func WithDeadline(at time.Time) Option {
	return func(s *Service) {
		s.deadline = at
	}
}

// WithTeacherBypass controls whether teachers may submit past the deadline.
func WithTeacherBypass(bypass bool) Option {
	return func(s *Service) {
		s.teacherBypass = bypass
	}
}

// WithDropUnknownIDs makes scoring drop unknown ids instead of rejecting.
func WithDropUnknownIDs(drop bool) Option {
	return func(s *Service) {
		s.dropUnknown = drop
	}
}

// WithFakesOnPublic merges fake entries into the public leaderboard too.
func WithFakesOnPublic(on bool) Option {
	return func(s *Service) {
		s.fakesPublic = on
	}
}

// WithBadgeInfo sets display metadata per badge kind.
func WithBadgeInfo(info map[string]badge.Info) Option {
	return func(s *Service) {
		s.badgeInfo = info
	}
}

// WithClock injects the wall clock, for deadline tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		now:           time.Now,
		teacherBypass: true,
		deadline:      time.Now().AddDate(1, 0, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the engines and replays stored history into the duplicate
// index so restart yields identical behavior.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil || s.master == nil {
		return fmt.Errorf("%w: store and master dataset are required", ErrNotStarted)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.scorer = scoring.NewScorer(s.master, s.gain, scoring.WithDropUnknownIDs(s.dropUnknown))
	if s.thresholds == nil {
		s.thresholds = scoring.Thresholds{}
	}
	s.index = dedupe.NewIndex()
	s.badges = badge.NewEngine(s.thresholds)
	s.lb = leaderboard.NewEngine(leaderboard.WithFakesOnPublic(s.fakesPublic))

	history, err := s.store.All(ctx)
	if err != nil {
		return fmt.Errorf("replay submission history: %w", err)
	}
	for _, sub := range history {
		s.index.Register(ctx, sub.Checksum, dedupe.Ref{
			SubmissionID: sub.ID,
			UserID:       sub.UserID,
			UserName:     sub.UserName,
			Name:         sub.Name,
		})
	}

	s.started = true
	s.logger.Info(ctx, "competition engine started",
		logger.Int("master_records", s.master.Len()),
		logger.Int("replayed_submissions", len(history)),
		logger.String("deadline", s.deadline.Format(time.RFC3339)),
	)
	return nil
}

// Stop releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "store close failed", logger.Error(err))
	}
	s.started = false
}

// Submit scores one prediction file and commits it atomically: duplicate
// flagging, store append, and badge evaluation happen under one lock, or not
// at all. Rejected submissions leave no state behind.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if !s.started {
		return SubmitResult{}, ErrNotStarted
	}
	if !req.Role.Valid() {
		return SubmitResult{}, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	now := req.Now
	if now.IsZero() {
		now = s.now()
	}
	if now.After(s.deadline) && !(req.Role == model.RoleTeacher && s.teacherBypass) {
		metrics.RecordSubmissionRejected("deadline_passed")
		return SubmitResult{}, fmt.Errorf("%w: deadline was %s", ErrDeadlinePassed, s.deadline.Format(time.RFC3339))
	}

	ids, err := parse.PositiveIDs(req.Raw)
	if err != nil {
		metrics.RecordSubmissionRejected("malformed_input")
		return SubmitResult{}, err
	}

	scoreStart := time.Now()
	eval, err := s.scorer.Evaluate(ids)
	if err != nil {
		metrics.RecordSubmissionRejected("invalid_identifier")
		return SubmitResult{}, err
	}
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Milliseconds()))

	checksum := dedupe.Checksum(ids)
	category := s.thresholds.Categorize(eval.Public.Score)

	s.mu.Lock()
	defer s.mu.Unlock()

	duplicate, originalID := s.index.Lookup(ctx, req.UserID, checksum)

	sub := model.Submission{
		UserID:        req.UserID,
		UserName:      req.UserName,
		Role:          req.Role,
		Name:          req.Name,
		CreatedAt:     now,
		PositiveIDs:   ids,
		Checksum:      checksum,
		PublicScore:   eval.Public.Score,
		PrivateScore:  eval.Private.Score,
		PublicCounts:  eval.Public.Counts,
		PrivateCounts: eval.Private.Counts,
		Category:      category.Category,
		Duplicate:     duplicate,
		OriginalID:    originalID,
	}
	var (
		id        int64
		newBadges []model.Badge
	)
	err = s.store.Atomic(ctx, func(st repository.Store) error {
		var err error
		if id, err = st.Append(ctx, sub); err != nil {
			return fmt.Errorf("append submission: %w", err)
		}
		newBadges, err = s.evaluateSubmissionBadges(ctx, st, req.UserID, id, eval.Public.Score, now)
		return err
	})
	if err != nil {
		return SubmitResult{}, err
	}
	s.index.Register(ctx, checksum, dedupe.Ref{
		SubmissionID: id,
		UserID:       req.UserID,
		UserName:     req.UserName,
		Name:         req.Name,
	})

	s.version.Add(1)
	metrics.RecordSubmissionAccepted()
	if duplicate {
		metrics.RecordDuplicateFlagged()
	}

	s.logger.Info(ctx, "submission accepted",
		logger.Int("id", int(id)),
		logger.String("user", req.UserID),
		logger.String("name", req.Name),
		logger.Float64("public_score", eval.Public.Score),
		logger.Any("duplicate", duplicate),
	)

	return SubmitResult{
		SubmissionID:  id,
		PublicScore:   eval.Public.Score,
		PrivateScore:  eval.Private.Score,
		PublicCounts:  eval.Public.Counts,
		PrivateCounts: eval.Private.Counts,
		Category:      category,
		Positives:     eval.Positives,
		Duplicate:     duplicate,
		OriginalID:    originalID,
		NewBadges:     s.decorate(newBadges),
	}, nil
}

// evaluateSubmissionBadges runs badge predicates for the submission just
// appended, reading and writing through st so awards commit with the
// append. Caller holds the write lock.
func (s *Service) evaluateSubmissionBadges(ctx context.Context, st repository.Store, userID string, subID int64, publicScore float64, now time.Time) ([]model.Badge, error) {
	userSubs, err := st.ByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user history: %w", err)
	}

	priorHigh := 0
	if high, ok := s.thresholds.High(); ok {
		for _, sub := range userSubs {
			if sub.ID != subID && sub.PublicScore >= high.MinScore {
				priorHigh++
			}
		}
	}

	rank := 0
	if all, err := st.All(ctx); err == nil {
		selections, _ := st.Selections(ctx)
		entries := s.lb.Compute(leaderboard.Public, all, selections, nil)
		rank = leaderboard.RealRank(entries, userID)
	}

	ev := badge.Event{
		UserID:           userID,
		SubmissionCount:  len(userSubs),
		PublicScore:      publicScore,
		PublicRank:       rank,
		PriorHighReaches: priorHigh,
	}
	return s.awardBadges(ctx, st, ev, now)
}

// awardBadges awards every newly-earned kind at most once per user.
func (s *Service) awardBadges(ctx context.Context, st repository.Store, ev badge.Event, now time.Time) ([]model.Badge, error) {
	held, err := s.heldKinds(ctx, st, ev.UserID)
	if err != nil {
		return nil, err
	}

	var earned []model.Badge
	for _, kind := range s.badges.Evaluate(ctx, ev, held) {
		b := model.Badge{UserID: ev.UserID, Kind: string(kind), EarnedAt: now}
		awarded, err := st.AwardBadge(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("award badge %s: %w", kind, err)
		}
		if awarded {
			metrics.RecordBadgeAwarded(string(kind))
			earned = append(earned, b)
		}
	}
	return earned, nil
}

// decorate joins stored badge records with configured display metadata.
func (s *Service) decorate(badges []model.Badge) []AwardedBadge {
	out := make([]AwardedBadge, 0, len(badges))
	for _, b := range badges {
		info, ok := s.badgeInfo[b.Kind]
		if !ok {
			info = badge.Info{Name: b.Kind}
		}
		out = append(out, AwardedBadge{
			Kind:     b.Kind,
			Name:     info.Name,
			Emoji:    info.Emoji,
			EarnedAt: b.EarnedAt,
		})
	}
	return out
}

func (s *Service) heldKinds(ctx context.Context, st repository.Store, userID string) (func(badge.Kind) bool, error) {
	owned, err := st.BadgesFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load badges: %w", err)
	}
	set := make(map[string]struct{}, len(owned))
	for _, b := range owned {
		set[b.Kind] = struct{}{}
	}
	return func(k badge.Kind) bool {
		_, ok := set[string(k)]
		return ok
	}, nil
}

// Select points the user's leaderboard entry at one of their own past
// submissions. First-ever selection earns a badge.
func (s *Service) Select(ctx context.Context, userID string, submissionID int64) ([]AwardedBadge, error) {
	if !s.started {
		return nil, ErrNotStarted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var earned []model.Badge
	err := s.store.Atomic(ctx, func(st repository.Store) error {
		if err := st.SetSelected(ctx, userID, submissionID); err != nil {
			return err
		}
		var err error
		earned, err = s.awardBadges(ctx, st, badge.Event{
			UserID:         userID,
			FirstSelection: true,
		}, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.version.Add(1)
	metrics.RecordSelection()
	s.logger.Info(ctx, "submission selected",
		logger.String("user", userID),
		logger.Int("submission", int(submissionID)),
	)
	return s.decorate(earned), nil
}

// Leaderboard recomputes the ranked view from the full history. Visibility
// enforcement (private is teacher-only) belongs to the API boundary.
func (s *Service) Leaderboard(ctx context.Context, view leaderboard.View) ([]leaderboard.Entry, error) {
	if !s.started {
		return nil, ErrNotStarted
	}

	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	selections, err := s.store.Selections(ctx)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	fakes, err := s.store.Fakes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fake entries: %w", err)
	}

	entries := s.lb.Compute(view, subs, selections, fakes)
	metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds()))
	return entries, nil
}

// Duplicates returns checksum groups shared across distinct users.
func (s *Service) Duplicates(ctx context.Context) []dedupe.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Groups(ctx)
}

// FakeAdd upserts a teacher-authored leaderboard entry.
func (s *Service) FakeAdd(ctx context.Context, name string, score float64) error {
	if !s.started {
		return ErrNotStarted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := model.FakeEntry{
		Name:     name,
		Score:    score,
		Category: s.thresholds.Categorize(score).Category,
	}
	if err := s.store.UpsertFake(ctx, f); err != nil {
		return err
	}
	s.version.Add(1)
	s.logger.Info(ctx, "fake entry upserted",
		logger.String("name", name),
		logger.Float64("score", score),
	)
	return nil
}

// FakeRemove deletes a fake entry by name.
func (s *Service) FakeRemove(ctx context.Context, name string) error {
	if !s.started {
		return ErrNotStarted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.RemoveFake(ctx, name); err != nil {
		return err
	}
	s.version.Add(1)
	return nil
}

// BadgesFor lists the user's badges with display metadata, most recent
// first.
func (s *Service) BadgesFor(ctx context.Context, userID string) ([]AwardedBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned, err := s.store.BadgesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.decorate(owned), nil
}

// ListSubmissions returns the caller's own history, newest first.
func (s *Service) ListSubmissions(ctx context.Context, userID string) ([]SubmissionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs, err := s.store.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	selected, _, err := s.store.SelectedFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]SubmissionSummary, 0, len(subs))
	for i := len(subs) - 1; i >= 0; i-- {
		sub := subs[i]
		out = append(out, SubmissionSummary{
			ID:          sub.ID,
			Name:        sub.Name,
			CreatedAt:   sub.CreatedAt,
			PublicScore: sub.PublicScore,
			Category:    sub.Category,
			Duplicate:   sub.Duplicate,
			Selected:    sub.ID == selected,
		})
	}
	return out, nil
}

// Version returns the mutation counter. Bumped on every accepted
// submission, selection, and fake-entry change.
func (s *Service) Version() uint64 {
	return s.version.Load()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started": s.started,
		"version": s.version.Load(),
	}
	if !s.started {
		return stats
	}

	total := s.store.Count(ctx)
	users := 0
	if subs, err := s.store.All(ctx); err == nil {
		seen := make(map[string]struct{})
		for _, sub := range subs {
			seen[sub.UserID] = struct{}{}
		}
		users = len(seen)
	}
	fakes, _ := s.store.Fakes(ctx)

	stats["submissions"] = total
	stats["users"] = users
	stats["fake_entries"] = len(fakes)
	stats["distinct_checksums"] = s.index.Size()
	stats["master_records"] = s.master.Len()

	metrics.UpdateTotalSubmissions(total)
	metrics.UpdateTotalUsers(users)
	metrics.UpdateFakeEntries(len(fakes))
	return stats
}

// Export serializes full engine state when the store supports snapshots.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.store.(snapshotter)
	if !ok {
		return fmt.Errorf("store does not support snapshots")
	}
	return snap.Export(ctx, w)
}

// Import restores engine state from a snapshot. Must be called before
// Start so the duplicate index replays the imported history.
func (s *Service) Import(ctx context.Context, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("import after start: %w", ErrNotStarted)
	}
	snap, ok := s.store.(snapshotter)
	if !ok {
		return fmt.Errorf("store does not support snapshots")
	}
	return snap.Import(ctx, r)
}
