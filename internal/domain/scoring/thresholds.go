package scoring

import "sort"

// Threshold maps a minimum score to a category with its announcement text.
type Threshold struct {
	MinScore float64
	Category string
	Message  string
	Emoji    string
}

// Thresholds is an ordered set of gain thresholds, highest MinScore first.
type Thresholds []Threshold

// NewThresholds copies and orders thresholds by MinScore descending.
func NewThresholds(in []Threshold) Thresholds {
	out := make(Thresholds, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinScore > out[j].MinScore
	})
	return out
}

// Categorize returns the highest threshold whose MinScore the score reaches.
// Scores below every threshold land in the lowest category.
func (t Thresholds) Categorize(score float64) Threshold {
	for _, th := range t {
		if score >= th.MinScore {
			return th
		}
	}
	if len(t) == 0 {
		return Threshold{}
	}
	return t[len(t)-1]
}

// High returns the second-highest threshold, the bar for the
// high-threshold badge. ok is false when fewer than two thresholds exist.
func (t Thresholds) High() (Threshold, bool) {
	if len(t) < 2 {
		return Threshold{}, false
	}
	return t[1], true
}
