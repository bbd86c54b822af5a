package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vmxio.com/peer-learn/internal/scoring"
)

type SubmitInput struct {
	TaskID       string  `json:"taskId"`
	UserID       string  `json:"-"`
	EvidenceText *string `json:"evidenceText"`
	EvidenceURL  *string `json:"evidenceUrl"`
	Answers      []int   `json:"answers"`
}

func blank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }

// SubmitTask records one submission per user and task. Auto-quiz answers are
// graded immediately; anything else waits for peer votes.
func (e *Engine) SubmitTask(ctx context.Context, in SubmitInput) (*TaskSubmission, error) {
	now := e.now()
	var sub TaskSubmission
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadTask(tx, in.TaskID)
		if err != nil {
			return err
		}
		if _, err := membership(tx, task.GroupID, in.UserID); err != nil {
			return err
		}
		if task.DueDate != nil && now.After(*task.DueDate) {
			return scoring.Violation(scoring.ErrDeadlinePassed, "task %s was due %s", task.ID, task.DueDate.Format(time.RFC3339))
		}
		if task.RequiresEvidence && blank(in.EvidenceText) && blank(in.EvidenceURL) {
			return scoring.Violation(ErrInvalidInput, "task %s requires evidence", task.ID)
		}

		// an empty answer list is a graded attempt; only an absent one waits
		graded := len(task.Questions) > 0 && in.Answers != nil
		sub = TaskSubmission{
			ID:           newID(),
			TaskID:       task.ID,
			UserID:       in.UserID,
			EvidenceText: in.EvidenceText,
			EvidenceURL:  in.EvidenceURL,
			Status:       scoring.InitialStatus(task.TaskType, graded),
			SubmittedAt:  now,
		}
		if in.Answers != nil {
			sub.Answers = in.Answers
		}
		if graded {
			qs := make([]scoring.Question, len(task.Questions))
			for i, q := range task.Questions {
				qs[i] = q.scoringQuestion()
			}
			auto := scoring.ScoreQuiz(qs, in.Answers).AutoScore
			sub.AutoScore = &auto
		}
		if sub.Status.IsTerminal() {
			// a pending hybrid keeps score 0 until the vote settles it
			if sub.AutoScore != nil {
				sub.Score = *sub.AutoScore
			}
			sub.DecidedAt = &now
		}
		if err := tx.Create(&sub).Error; err != nil {
			if isUniqueViolation(err) {
				return scoring.Violation(scoring.ErrDuplicateSubmission, "user %s already submitted task %s", in.UserID, task.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(EventSubmissionCreated, sub)
	if sub.Status == scoring.StatusAutoScored {
		submissionsDecided.WithLabelValues(sub.Status.String()).Inc()
		e.publish(EventSubmissionDecided, sub)
	}
	return &sub, nil
}

type VoteInput struct {
	SubmissionID string  `json:"submissionId"`
	VoterID      string  `json:"-"`
	Vote         string  `json:"vote"`
	Comment      *string `json:"comment"`
}

// VoteResult is the stored vote plus the submission state after the tally.
type VoteResult struct {
	Vote       TaskVote         `json:"vote"`
	Submission TaskSubmission   `json:"submission"`
	Decision   scoring.Decision `json:"-"`
	rating     *RatingEvent
}

// CastVote records a vote and, when the tally reaches a decision, settles the
// submission. Everything happens in one transaction holding the submission
// row, so only one vote can ever move it out of PENDING.
func (e *Engine) CastVote(ctx context.Context, in VoteInput) (*VoteResult, error) {
	now := e.now()
	var res VoteResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		choice, err := scoring.ParseVote(in.Vote)
		if err != nil {
			return err
		}
		var sub TaskSubmission
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sub, "id = ?", in.SubmissionID).Error; err != nil {
			return notFound(err, "submission")
		}
		var task Task
		if err := tx.First(&task, "id = ?", sub.TaskID).Error; err != nil {
			return notFound(err, "task")
		}
		if _, err := membership(tx, task.GroupID, in.VoterID); err != nil {
			return err
		}
		if sub.Status != scoring.StatusPending {
			return scoring.Violation(scoring.ErrSubmissionNotPending, "submission %s is %s", sub.ID, sub.Status)
		}
		if sub.UserID == in.VoterID {
			return scoring.Violation(scoring.ErrSelfVote, "user %s cannot vote on own submission", in.VoterID)
		}
		if task.VotingDeadline != nil && now.After(*task.VotingDeadline) {
			return scoring.Violation(scoring.ErrDeadlinePassed, "voting on task %s closed %s", task.ID, task.VotingDeadline.Format(time.RFC3339))
		}

		res.Vote = TaskVote{
			ID:           newID(),
			SubmissionID: sub.ID,
			VoterID:      in.VoterID,
			Vote:         choice,
			Comment:      in.Comment,
			CreatedAt:    now,
		}
		if err := tx.Create(&res.Vote).Error; err != nil {
			if isUniqueViolation(err) {
				return scoring.Violation(scoring.ErrDuplicateVote, "user %s already voted on %s", in.VoterID, sub.ID)
			}
			return err
		}

		var votes []scoring.VoteChoice
		if err := tx.Model(&TaskVote{}).Where("submission_id = ?", sub.ID).Pluck("vote", &votes).Error; err != nil {
			return err
		}
		members, err := memberCount(tx, task.GroupID)
		if err != nil {
			return err
		}
		res.Decision = scoring.Tally(votes, members-1, task.VotingThreshold)
		r, decided := scoring.Resolve(task.PointValue, sub.AutoScore, res.Decision)
		if !decided {
			res.Submission = sub
			return nil
		}
		if err := scoring.Transition(sub.Status, r.Status); err != nil {
			return err
		}
		upd := tx.Model(&TaskSubmission{}).
			Where("id = ? AND status = ?", sub.ID, scoring.StatusPending).
			Updates(map[string]any{
				"status":     r.Status,
				"peer_score": r.PeerScore,
				"score":      r.Score,
				"decided_at": now,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected != 1 {
			return scoring.Violation(scoring.ErrSubmissionNotPending, "submission %s was decided concurrently", sub.ID)
		}
		sub.Status, sub.PeerScore, sub.Score, sub.DecidedAt = r.Status, r.PeerScore, r.Score, &now
		res.Submission = sub

		if r.Status != scoring.StatusApproved {
			return nil
		}
		users, err := lockUsers(tx, sub.UserID)
		if err != nil {
			return err
		}
		ev, err := applyRating(tx, users[sub.UserID], r.RatingDelta, scoring.CauseTaskApproval, sub.ID, now)
		if err != nil {
			return err
		}
		res.rating = &ev
		return nil
	})
	if err != nil {
		if k := ruleKind(err); k != "" {
			voteRejections.WithLabelValues(k).Inc()
		}
		return nil, err
	}

	votesCast.WithLabelValues(res.Vote.Vote.String()).Inc()
	e.publish(EventVoteCast, res.Vote)
	if res.Submission.Status.IsTerminal() {
		slog.Info("submission decided",
			"submission", res.Submission.ID,
			"status", res.Submission.Status.String(),
			"approve", res.Decision.Approve,
			"total", res.Decision.Total,
			"score", res.Submission.Score)
		submissionsDecided.WithLabelValues(res.Submission.Status.String()).Inc()
		e.publish(EventSubmissionDecided, res.Submission)
	}
	if res.rating != nil {
		e.afterRatingChange(ctx, *res.rating)
	}
	return &res, nil
}

// GetSubmission returns a submission with its votes to any member of the
// task's group.
func (e *Engine) GetSubmission(ctx context.Context, submissionID, userID string) (*TaskSubmission, error) {
	db := e.db.WithContext(ctx)
	var sub TaskSubmission
	if err := db.Preload("Votes", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&sub, "id = ?", submissionID).Error; err != nil {
		return nil, notFound(err, "submission")
	}
	var task Task
	if err := db.First(&task, "id = ?", sub.TaskID).Error; err != nil {
		return nil, notFound(err, "task")
	}
	if _, err := membership(db, task.GroupID, userID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// PendingForVoting lists the group's pending submissions the caller may still
// vote on: not their own and not already voted.
func (e *Engine) PendingForVoting(ctx context.Context, groupID, userID string) ([]TaskSubmission, error) {
	db := e.db.WithContext(ctx)
	if _, err := membership(db, groupID, userID); err != nil {
		return nil, err
	}
	voted := db.Model(&TaskVote{}).Select("submission_id").Where("voter_id = ?", userID)
	var subs []TaskSubmission
	err := db.Select("task_submissions.*").
		Joins("JOIN tasks ON tasks.id = task_submissions.task_id").
		Where("tasks.group_id = ?", groupID).
		Where("task_submissions.status = ?", scoring.StatusPending).
		Where("task_submissions.user_id <> ?", userID).
		Where("task_submissions.id NOT IN (?)", voted).
		Order("task_submissions.submitted_at ASC").
		Find(&subs).Error
	return subs, err
}
