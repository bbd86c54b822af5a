package scoring

// Outcome of a tally over the current vote set.
type Outcome int

const (
	Undetermined Outcome = iota
	Accept
	Decline
)

func (o Outcome) String() string {
	switch o {
	case Accept:
		return "ACCEPT"
	case Decline:
		return "DECLINE"
	default:
		return "UNDETERMINED"
	}
}

// MinQuorum is the floor on votes needed before a decision.
const MinQuorum = 3

type Decision struct {
	Outcome      Outcome
	Quorum       int
	Total        int
	Approve      int
	Reject       int
	Abstain      int
	ApprovalRate float64
}

// Quorum returns max(3, floor(eligibleVoters/2)).
func Quorum(eligibleVoters int) int {
	q := eligibleVoters / 2
	if eligibleVoters < 0 {
		q = 0
	}
	if q < MinQuorum {
		return MinQuorum
	}
	return q
}

// Tally is recomputed from the full vote set on every vote, so the result
// depends only on the multiset of votes and not on arrival order.
func Tally(votes []VoteChoice, eligibleVoters int, threshold float64) Decision {
	d := Decision{Quorum: Quorum(eligibleVoters), Total: len(votes)}
	for _, v := range votes {
		switch v {
		case VoteApprove:
			d.Approve++
		case VoteReject:
			d.Reject++
		case VoteAbstain:
			d.Abstain++
		}
	}
	if d.Total < d.Quorum {
		return d
	}
	d.ApprovalRate = float64(d.Approve) / float64(d.Total)
	if d.ApprovalRate >= threshold {
		d.Outcome = Accept
	} else {
		d.Outcome = Decline
	}
	return d
}
