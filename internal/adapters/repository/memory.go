package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/okian/oraculus/internal/domain/model"
	"github.com/okian/oraculus/pkg/metrics"
)

// MemoryStore is the in-memory Store. It is the default for tests and for
// competitions that accept losing history on restart; use the sqlite store
// for durability.
type MemoryStore struct {
	mu sync.RWMutex

	nextID      int64
	submissions []model.Submission
	byUser      map[string][]int // indexes into submissions
	byID        map[int64]int

	selections map[string]int64
	badges     []model.Badge
	badgeHeld  map[string]map[string]struct{} // userID -> kind
	fakes      map[string]model.FakeEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(_ context.Context) *MemoryStore {
	return &MemoryStore{
		nextID:     1,
		byUser:     make(map[string][]int),
		byID:       make(map[int64]int),
		selections: make(map[string]int64),
		badgeHeld:  make(map[string]map[string]struct{}),
		fakes:      make(map[string]model.FakeEntry),
	}
}

// Append records a scored submission and returns its assigned id.
func (s *MemoryStore) Append(_ context.Context, sub model.Submission) (int64, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.ID = s.nextID
	s.nextID++
	sub.PositiveIDs = append([]int64(nil), sub.PositiveIDs...)

	idx := len(s.submissions)
	s.submissions = append(s.submissions, sub)
	s.byID[sub.ID] = idx
	s.byUser[sub.UserID] = append(s.byUser[sub.UserID], idx)

	metrics.RecordStoreAppendLatency(float64(time.Since(start).Milliseconds()))
	return sub.ID, nil
}

// Get returns one submission by id.
func (s *MemoryStore) Get(_ context.Context, id int64) (model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return model.Submission{}, fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	return s.submissions[idx], nil
}

// ByUser returns the user's submissions in insertion order.
func (s *MemoryStore) ByUser(_ context.Context, userID string) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.byUser[userID]
	out := make([]model.Submission, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.submissions[i])
	}
	return out, nil
}

// All returns every submission in insertion order.
func (s *MemoryStore) All(_ context.Context) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Submission, len(s.submissions))
	copy(out, s.submissions)
	return out, nil
}

// Count returns the number of stored submissions.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.submissions)
}

// SetSelected points the user's leaderboard entry at their own submission.
func (s *MemoryStore) SetSelected(_ context.Context, userID string, submissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[submissionID]
	if !ok || s.submissions[idx].UserID != userID {
		return fmt.Errorf("submission %d for user %s: %w", submissionID, userID, ErrInvalidSelection)
	}
	s.selections[userID] = submissionID
	return nil
}

// SelectedFor returns the user's selection pointer.
func (s *MemoryStore) SelectedFor(_ context.Context, userID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.selections[userID]
	return id, ok, nil
}

// Selections returns every selection pointer.
func (s *MemoryStore) Selections(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.selections))
	for k, v := range s.selections {
		out[k] = v
	}
	return out, nil
}

// AwardBadge records a badge, refusing silently when already held.
func (s *MemoryStore) AwardBadge(_ context.Context, b model.Badge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.badgeHeld[b.UserID]
	if !ok {
		held = make(map[string]struct{})
		s.badgeHeld[b.UserID] = held
	}
	if _, exists := held[b.Kind]; exists {
		return false, nil
	}
	held[b.Kind] = struct{}{}
	s.badges = append(s.badges, b)
	return true, nil
}

// BadgesFor returns the user's badges, most recent first.
func (s *MemoryStore) BadgesFor(_ context.Context, userID string) ([]model.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Badge
	for i := len(s.badges) - 1; i >= 0; i-- {
		if s.badges[i].UserID == userID {
			out = append(out, s.badges[i])
		}
	}
	return out, nil
}

// UpsertFake adds or replaces a fake entry by name.
func (s *MemoryStore) UpsertFake(_ context.Context, f model.FakeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fakes[f.Name] = f
	return nil
}

// RemoveFake deletes a fake entry.
func (s *MemoryStore) RemoveFake(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fakes[name]; !ok {
		return fmt.Errorf("fake entry %q: %w", name, ErrNotFound)
	}
	delete(s.fakes, name)
	return nil
}

// Fakes returns all fake entries in name order.
func (s *MemoryStore) Fakes(_ context.Context) ([]model.FakeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FakeEntry, 0, len(s.fakes))
	for _, f := range s.fakes {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Atomic applies fn directly. The in-memory store cannot partially persist
// a failed group; nothing survives a crash either way.
func (s *MemoryStore) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(s)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// snapshot is the JSON shape persisted by Export and read by Import.
type snapshot struct {
	NextID      int64              `json:"next_id"`
	Submissions []model.Submission `json:"submissions"`
	Selections  map[string]int64   `json:"selections"`
	Badges      []model.Badge      `json:"badges"`
	Fakes       []model.FakeEntry  `json:"fakes"`
}

// Export serializes the full store state. The output is sufficient to
// reconstruct identical leaderboard state via Import.
func (s *MemoryStore) Export(_ context.Context, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		NextID:      s.nextID,
		Submissions: s.submissions,
		Selections:  s.selections,
	}
	snap.Badges = s.badges
	for _, name := range sortedFakeNames(s.fakes) {
		snap.Fakes = append(snap.Fakes, s.fakes[name])
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	return nil
}

// Import replaces the store state with a previously exported snapshot.
// Only valid on a fresh store.
func (s *MemoryStore) Import(_ context.Context, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.submissions) > 0 {
		return fmt.Errorf("import snapshot: %w", ErrNotEmpty)
	}

	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	s.nextID = snap.NextID
	if s.nextID < 1 {
		s.nextID = 1
	}
	for _, sub := range snap.Submissions {
		idx := len(s.submissions)
		s.submissions = append(s.submissions, sub)
		s.byID[sub.ID] = idx
		s.byUser[sub.UserID] = append(s.byUser[sub.UserID], idx)
		if sub.ID >= s.nextID {
			s.nextID = sub.ID + 1
		}
	}
	for uid, id := range snap.Selections {
		s.selections[uid] = id
	}
	for _, b := range snap.Badges {
		held, ok := s.badgeHeld[b.UserID]
		if !ok {
			held = make(map[string]struct{})
			s.badgeHeld[b.UserID] = held
		}
		if _, exists := held[b.Kind]; exists {
			continue
		}
		held[b.Kind] = struct{}{}
		s.badges = append(s.badges, b)
	}
	for _, f := range snap.Fakes {
		s.fakes[f.Name] = f
	}
	return nil
}

func sortedFakeNames(fakes map[string]model.FakeEntry) []string {
	names := make([]string, 0, len(fakes))
	for name := range fakes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
