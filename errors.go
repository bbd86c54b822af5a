package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vmxio.com/peer-learn/internal/scoring"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotGroupMember   = errors.New("not a group member")
	ErrAlreadyMember    = errors.New("already a group member")
	ErrForbidden        = errors.New("forbidden")
	ErrNotSessionPlayer = errors.New("not a session player")
	ErrAlreadyAnswered  = errors.New("question already answered")
	ErrNoTopic          = errors.New("no topic available")
)

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return scoring.Violation(ErrNotFound, "%s not found", what)
	}
	return err
}

type errorKind struct {
	err    error
	code   string
	status int
}

var errorKinds = []errorKind{
	{scoring.ErrDuplicateSubmission, "DuplicateSubmission", http.StatusConflict},
	{scoring.ErrDeadlinePassed, "DeadlinePassed", http.StatusBadRequest},
	{scoring.ErrSelfVote, "SelfVote", http.StatusBadRequest},
	{scoring.ErrDuplicateVote, "DuplicateVote", http.StatusConflict},
	{scoring.ErrInvalidVoteValue, "InvalidVoteValue", http.StatusBadRequest},
	{scoring.ErrSubmissionNotPending, "SubmissionNotPending", http.StatusConflict},
	{scoring.ErrIncompleteSession, "IncompleteSession", http.StatusBadRequest},
	{scoring.ErrAlreadyCompleted, "AlreadyCompleted", http.StatusConflict},
	{scoring.ErrInvalidTransition, "InvalidTransition", http.StatusConflict},
	{ErrNotFound, "NotFound", http.StatusNotFound},
	{ErrInvalidInput, "InvalidInput", http.StatusBadRequest},
	{ErrNotGroupMember, "NotGroupMember", http.StatusForbidden},
	{ErrAlreadyMember, "AlreadyMember", http.StatusConflict},
	{ErrForbidden, "Forbidden", http.StatusForbidden},
	{ErrNotSessionPlayer, "NotSessionPlayer", http.StatusForbidden},
	{ErrAlreadyAnswered, "AlreadyAnswered", http.StatusConflict},
	{ErrNoTopic, "NoTopic", http.StatusConflict},
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func lookupKind(err error) (errorKind, bool) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return errorKind{}, false
}

// ruleKind names the violated rule, or "" for infrastructure failures.
func ruleKind(err error) string {
	k, _ := lookupKind(err)
	return k.code
}

// respondError writes the rule that was violated, or a generic 500.
func respondError(c *gin.Context, err error) {
	if k, ok := lookupKind(err); ok {
		c.JSON(k.status, ErrorResponse{Error: k.code, Message: err.Error()})
		return
	}
	slog.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal", Message: "db"})
}
