package scoring

import (
	"errors"
	"fmt"
)

// Rule violations. Each one is locally recoverable: the caller rejects the
// request and no state changes.
var (
	ErrDuplicateSubmission  = errors.New("duplicate submission")
	ErrDeadlinePassed       = errors.New("deadline passed")
	ErrSelfVote             = errors.New("self vote")
	ErrDuplicateVote        = errors.New("duplicate vote")
	ErrInvalidVoteValue     = errors.New("invalid vote value")
	ErrSubmissionNotPending = errors.New("submission not pending")
	ErrIncompleteSession    = errors.New("incomplete session")
	ErrAlreadyCompleted     = errors.New("session already completed")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// RuleError attaches detail to one of the sentinel kinds above.
type RuleError struct {
	Kind error
	Msg  string
}

func (e *RuleError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *RuleError) Unwrap() error { return e.Kind }

// Violation builds a RuleError of the given kind.
func Violation(kind error, format string, args ...any) error {
	return &RuleError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
