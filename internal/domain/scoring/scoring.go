// Package scoring computes gain-matrix scores over the master dataset splits.
package scoring

import (
	"fmt"

	"github.com/okian/oraculus/internal/domain/dataset"
	"github.com/okian/oraculus/internal/domain/model"
)

// Matrix holds the four signed gain weights. Immutable per competition.
type Matrix struct {
	TP int64
	TN int64
	FP int64
	FN int64
}

// SplitResult is the score and confusion matrix over one split.
type SplitResult struct {
	Score  float64
	Counts model.Counts
}

// Evaluation is the outcome of scoring one predicted-positive id set against
// both splits of the master dataset.
type Evaluation struct {
	Public    SplitResult
	Private   SplitResult
	Positives int // distinct predicted-positive ids actually scored
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithDropUnknownIDs makes the scorer silently drop predicted ids that are
// absent from the master dataset instead of rejecting the submission.
func WithDropUnknownIDs(drop bool) Option {
	return func(s *Scorer) {
		s.dropUnknown = drop
	}
}

// Scorer is a pure, deterministic scoring function over a fixed master
// dataset and gain matrix. Safe for concurrent use.
type Scorer struct {
	master      *dataset.Master
	gain        Matrix
	dropUnknown bool
}

// NewScorer creates a Scorer bound to the process-lifetime master snapshot.
func NewScorer(master *dataset.Master, gain Matrix, opts ...Option) *Scorer {
	s := &Scorer{
		master: master,
		gain:   gain,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate classifies every master record against the predicted-positive id
// set and returns both split results. ids may contain duplicates; they count
// once. Unknown ids fail the whole evaluation with ErrInvalidIdentifier
// unless the scorer was built with WithDropUnknownIDs(true).
func (s *Scorer) Evaluate(ids []int64) (Evaluation, error) {
	positive := make(map[int64]struct{}, len(ids))
	unknown := 0
	for _, id := range ids {
		if !s.master.Contains(id) {
			unknown++
			continue
		}
		positive[id] = struct{}{}
	}
	if unknown > 0 && !s.dropUnknown {
		return Evaluation{}, fmt.Errorf("%w: %d ids not in master dataset", ErrInvalidIdentifier, unknown)
	}

	return Evaluation{
		Public:    s.evaluateSplit(dataset.SplitPublic, positive),
		Private:   s.evaluateSplit(dataset.SplitPrivate, positive),
		Positives: len(positive),
	}, nil
}

func (s *Scorer) evaluateSplit(split dataset.Split, positive map[int64]struct{}) SplitResult {
	var c model.Counts
	for _, rec := range s.master.Records(split) {
		_, predicted := positive[rec.ID]
		switch {
		case rec.Label == 1 && predicted:
			c.TP++
		case rec.Label == 1 && !predicted:
			c.FN++
		case rec.Label == 0 && predicted:
			c.FP++
		default:
			c.TN++
		}
	}
	return SplitResult{Score: s.Score(c), Counts: c}
}

// Score folds a confusion matrix into the scalar gain score.
func (s *Scorer) Score(c model.Counts) float64 {
	return float64(int64(c.TP)*s.gain.TP +
		int64(c.TN)*s.gain.TN +
		int64(c.FP)*s.gain.FP +
		int64(c.FN)*s.gain.FN)
}

// Gain returns the scorer's gain matrix.
func (s *Scorer) Gain() Matrix { return s.gain }
