// Package dedupe provides content-addressed duplicate detection for
// submissions.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"
)

// Checksum digests a predicted-positive id set. The input is normalized
// first (deduplicated, sorted ascending) so byte order and repetition in the
// original file never change the digest.
func Checksum(ids []int64) string {
	uniq := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	norm := make([]int64, 0, len(uniq))
	for id := range uniq {
		norm = append(norm, id)
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i] < norm[j] })

	h := sha256.New()
	for _, id := range norm {
		h.Write([]byte(strconv.FormatInt(id, 10)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Ref identifies one registered submission.
type Ref struct {
	SubmissionID int64
	UserID       string
	UserName     string
	Name         string
}

// Group is a set of submissions sharing a checksum across at least two
// distinct users. Used by the academic-integrity report.
type Group struct {
	Checksum    string
	Users       []string // distinct user ids, in first-seen order
	Submissions []Ref    // registration order
}

// Index is the content-addressed index of prior submissions. Reads and
// registrations are safe for concurrent use; registration is atomic.
type Index struct {
	mu sync.RWMutex

	// first submission id per (user, checksum)
	firstByUser map[string]map[string]int64

	// all registrations per checksum, in order
	byChecksum map[string][]Ref

	// checksum insertion order for deterministic reports
	order []string
}

// NewIndex creates an empty duplicate index. Rebuild it from the submission
// store on restart by replaying history through Register.
func NewIndex() *Index {
	return &Index{
		firstByUser: make(map[string]map[string]int64),
		byChecksum:  make(map[string][]Ref),
	}
}

// Register records a submission under its checksum and reports whether this
// user already submitted an identical id set. originalID is that first
// submission's id when duplicate is true.
func (i *Index) Register(_ context.Context, checksum string, ref Ref) (duplicate bool, originalID int64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.byChecksum[checksum]; !ok {
		i.order = append(i.order, checksum)
	}
	i.byChecksum[checksum] = append(i.byChecksum[checksum], ref)

	perUser, ok := i.firstByUser[ref.UserID]
	if !ok {
		perUser = make(map[string]int64)
		i.firstByUser[ref.UserID] = perUser
	}
	if first, ok := perUser[checksum]; ok {
		return true, first
	}
	perUser[checksum] = ref.SubmissionID
	return false, 0
}

// Lookup reports whether the user already registered this checksum, without
// recording anything. Used to flag a submission before the store assigns
// its id; Register must follow once the id is known.
func (i *Index) Lookup(_ context.Context, userID, checksum string) (duplicate bool, originalID int64) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if first, ok := i.firstByUser[userID][checksum]; ok {
		return true, first
	}
	return false, 0
}

// Groups returns every checksum submitted by two or more distinct users,
// independent of duplicate flags on the individual submissions.
func (i *Index) Groups(_ context.Context) []Group {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var groups []Group
	for _, sum := range i.order {
		refs := i.byChecksum[sum]
		var users []string
		seen := make(map[string]struct{})
		for _, r := range refs {
			if _, ok := seen[r.UserID]; ok {
				continue
			}
			seen[r.UserID] = struct{}{}
			users = append(users, r.UserID)
		}
		if len(users) < 2 {
			continue
		}
		g := Group{Checksum: sum, Users: users}
		g.Submissions = append(g.Submissions, refs...)
		groups = append(groups, g)
	}
	return groups
}

// Size returns the number of distinct checksums registered.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byChecksum)
}
