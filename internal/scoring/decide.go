package scoring

// Resolution is the state a pending submission moves to once a tally
// reaches a decision.
type Resolution struct {
	Status    SubmissionStatus
	PeerScore int
	Score     int
	// RatingDelta is the task-approval bump owed to the submitter.
	RatingDelta float64
}

// Resolve applies a decided tally to a pending submission. ok is false while
// the tally is undetermined.
func Resolve(pointValue int, autoScore *int, d Decision) (r Resolution, ok bool) {
	base := 0
	if autoScore != nil {
		base = *autoScore
	}
	switch d.Outcome {
	case Accept:
		peer := int(RoundHalfUp(float64(pointValue) * d.ApprovalRate))
		r = Resolution{Status: StatusApproved, PeerScore: peer, Score: base + peer}
		r.RatingDelta = ApprovalBump(r.Score)
		return r, true
	case Decline:
		return Resolution{Status: StatusRejected, Score: base}, true
	default:
		return Resolution{}, false
	}
}
