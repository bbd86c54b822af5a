package scoring

import "math"

// DefaultRating is what a new member starts with.
const DefaultRating = 1200.0

// RatingCause records why a rating moved.
type RatingCause string

const (
	CauseTaskApproval RatingCause = "TASK_APPROVAL"
	CauseSessionElo   RatingCause = "SESSION_ELO"
)

// ApprovalBump is the one-way rating increase for an approved submission:
// floor(score / 10). It is not zero-sum.
func ApprovalBump(finalScore int) float64 {
	return math.Floor(float64(finalScore) / 10)
}

// FoldRating replays a ledger of deltas on top of the starting rating.
func FoldRating(initial float64, deltas []float64) float64 {
	r := initial
	for _, d := range deltas {
		r += d
	}
	return r
}

// RoundHalfUp rounds .5 toward positive infinity.
func RoundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
