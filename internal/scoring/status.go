package scoring

import (
	"database/sql/driver"
	"fmt"
)

// SubmissionStatus is the lifecycle state of a task submission.
type SubmissionStatus uint8

const (
	StatusPending SubmissionStatus = iota + 1
	StatusAutoScored
	StatusApproved
	StatusRejected
)

var statusNames = map[SubmissionStatus]string{
	StatusPending:    "PENDING",
	StatusAutoScored: "AUTO_SCORED",
	StatusApproved:   "APPROVED",
	StatusRejected:   "REJECTED",
}

func (s SubmissionStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SubmissionStatus(%d)", uint8(s))
}

// ParseStatus maps a stored name back to its status.
func ParseStatus(name string) (SubmissionStatus, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown submission status %q", name)
}

// IsTerminal reports whether no further transition is possible.
func (s SubmissionStatus) IsTerminal() bool {
	switch s {
	case StatusAutoScored, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Transition validates a single lifecycle step. PENDING is the only state
// with outgoing edges; AUTO_SCORED is reachable only from a fresh submission.
func Transition(from, to SubmissionStatus) error {
	if from == StatusPending && to.IsTerminal() {
		return nil
	}
	return Violation(ErrInvalidTransition, "%s -> %s", from, to)
}

func (s SubmissionStatus) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("invalid submission status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *SubmissionStatus) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Value stores the status by name so the column stays readable.
func (s SubmissionStatus) Value() (driver.Value, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("invalid submission status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *SubmissionStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into SubmissionStatus", src)
	}
}

// GormDataType keeps the column textual on every dialect.
func (SubmissionStatus) GormDataType() string { return "string" }
