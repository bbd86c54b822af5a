package scoring

import (
	"database/sql/driver"
	"fmt"
)

// VoteChoice is a peer's verdict on a submission.
type VoteChoice uint8

const (
	VoteApprove VoteChoice = iota + 1
	VoteReject
	VoteAbstain
)

var voteNames = map[VoteChoice]string{
	VoteApprove: "APPROVE",
	VoteReject:  "REJECT",
	VoteAbstain: "ABSTAIN",
}

func (v VoteChoice) String() string {
	if n, ok := voteNames[v]; ok {
		return n
	}
	return fmt.Sprintf("VoteChoice(%d)", uint8(v))
}

// ParseVote accepts exactly APPROVE, REJECT or ABSTAIN. Anything else is
// rejected rather than defaulted.
func ParseVote(name string) (VoteChoice, error) {
	for v, n := range voteNames {
		if n == name {
			return v, nil
		}
	}
	return 0, Violation(ErrInvalidVoteValue, "%q is not one of APPROVE, REJECT, ABSTAIN", name)
}

func (v VoteChoice) MarshalText() ([]byte, error) {
	if _, ok := voteNames[v]; !ok {
		return nil, fmt.Errorf("invalid vote %d", uint8(v))
	}
	return []byte(v.String()), nil
}

func (v *VoteChoice) UnmarshalText(b []byte) error {
	c, err := ParseVote(string(b))
	if err != nil {
		return err
	}
	*v = c
	return nil
}

func (v VoteChoice) Value() (driver.Value, error) {
	if _, ok := voteNames[v]; !ok {
		return nil, fmt.Errorf("invalid vote %d", uint8(v))
	}
	return v.String(), nil
}

func (v *VoteChoice) Scan(src any) error {
	switch x := src.(type) {
	case string:
		return v.UnmarshalText([]byte(x))
	case []byte:
		return v.UnmarshalText(x)
	default:
		return fmt.Errorf("cannot scan %T into VoteChoice", src)
	}
}

func (VoteChoice) GormDataType() string { return "string" }
