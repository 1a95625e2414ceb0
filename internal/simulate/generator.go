package simulate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/oraculus/internal/domain/dataset"
	"github.com/okian/oraculus/internal/domain/scoring"
	"github.com/okian/oraculus/pkg/logger"
)

// Positive-rate brackets for the synthetic cohort. Spreading the rates keeps
// the resulting leaderboard from collapsing into one score band.
const (
	sharpshooterPct = 10 // predicts few ids, mostly right region
	typicalPct      = 40
	scattershotPct  = 80 // predicts most of the dataset positive
	rateBuckets     = 3
)

// randInt returns a uniform random int in [0, n) using crypto/rand.
func randInt(n int) int {
	if n <= 0 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSubmissions builds the synthetic cohort: Students users, each with
// SubmissionsPer prediction files over random id subsets of the master. The
// expected public score is computed locally with the same scoring engine the
// server runs, so every acknowledgment can be cross-checked.
func generateSubmissions(ctx context.Context, config *Config, master *dataset.Master, scorer *scoring.Scorer, stats *Stats) ([]Submission, error) {
	total := config.Students * config.SubmissionsPer
	logger.Get().Info(ctx, "generating synthetic submissions",
		logger.Int("students", config.Students),
		logger.Int("perStudent", config.SubmissionsPer),
		logger.Int("total", total))

	ids := make([]int64, 0, master.Len())
	for _, split := range []dataset.Split{dataset.SplitPublic, dataset.SplitPrivate} {
		for _, rec := range master.Records(split) {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("master dataset is empty")
	}

	out := make([]Submission, 0, total)
	for s := 0; s < config.Students; s++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		default:
		}

		userID := uuid.New().String()
		userName := fmt.Sprintf("sim-student-%03d", s)
		rate := rateFor(s)

		for n := 0; n < config.SubmissionsPer; n++ {
			picked := pickSubset(ids, rate)
			body := renderCSV(picked)

			eval, err := scorer.Evaluate(picked)
			if err != nil {
				return nil, fmt.Errorf("score generated subset: %w", err)
			}

			out = append(out, Submission{
				UserID:   userID,
				UserName: userName,
				Name:     fmt.Sprintf("run-%d", n+1),
				Body:     body,
				Expected: eval.Public.Score,
			})
		}
	}

	stats.Generated = len(out)
	logger.Get().Info(ctx, "generated submissions successfully", logger.Int("count", len(out)))
	return out, nil
}

// rateFor assigns each student a positive-rate bracket round-robin.
func rateFor(student int) int {
	switch student % rateBuckets {
	case 0:
		return sharpshooterPct
	case 1:
		return typicalPct
	default:
		return scattershotPct
	}
}

// pickSubset selects each id with probability pct/100, guaranteeing at least
// one id so the file always parses.
func pickSubset(ids []int64, pct int) []int64 {
	picked := make([]int64, 0, len(ids)*pct/100+1)
	for _, id := range ids {
		if randInt(100) < pct {
			picked = append(picked, id)
		}
	}
	if len(picked) == 0 {
		picked = append(picked, ids[randInt(len(ids))])
	}
	return picked
}

// renderCSV renders ids as the single-column upload format.
func renderCSV(ids []int64) string {
	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, "%d\n", id)
	}
	return sb.String()
}
