package simulate

import (
	"fmt"
	"log"
)

// verifyLeaderboard checks the fetched board against the locally computed
// expectations: descending order, and a top entry matching the best score
// any simulated student ever achieved.
func verifyLeaderboard(subs []Submission, board []boardEntry, stats *Stats) error {
	log.Println("verifying leaderboard...")

	if len(board) == 0 {
		return fmt.Errorf("empty leaderboard after %d accepted submissions", stats.Accepted)
	}

	for i := 1; i < len(board); i++ {
		if board[i].Score > board[i-1].Score {
			return fmt.Errorf("leaderboard not sorted: entry %d outscores entry %d", i, i-1)
		}
	}

	// Per-user best expected public score.
	bestByUser := make(map[string]float64)
	for _, sub := range subs {
		if cur, ok := bestByUser[sub.UserID]; !ok || sub.Expected > cur {
			bestByUser[sub.UserID] = sub.Expected
		}
	}
	bestExpected := 0.0
	first := true
	for _, v := range bestByUser {
		if first || v > bestExpected {
			bestExpected = v
			first = false
		}
	}

	top := board[0]
	if top.Fake {
		return fmt.Errorf("top entry is a fake; simulation added none")
	}
	if top.Score != bestExpected {
		return fmt.Errorf("top leaderboard score %.0f does not match best expected score %.0f",
			top.Score, bestExpected)
	}
	if want, ok := bestByUser[top.UserID]; !ok || want != top.Score {
		return fmt.Errorf("top entry user %s does not hold the best expected score", top.UserID)
	}

	log.Printf("leaderboard verified: top entry %s at %.0f", top.DisplayName, top.Score)
	return nil
}
