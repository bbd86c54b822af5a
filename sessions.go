package main

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vmxio.com/peer-learn/internal/scoring"
)

// --- Weekly pairing ---

// CreateWeeklySessions pairs a group's members by rating for the current
// week. It is idempotent: a week that already has sessions yields 0, and so
// does a concurrent trigger that loses the race on the pair index.
func (e *Engine) CreateWeeklySessions(ctx context.Context, groupID string) (int, error) {
	now := e.now()
	week := scoring.WeekStart(now)
	var created []LearningSession
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g Group
		if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
			return notFound(err, "group")
		}
		var existing int64
		if err := tx.Model(&LearningSession{}).
			Where("group_id = ? AND week_start = ?", groupID, week).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		var members []scoring.Member
		if err := tx.Table("group_members").
			Select("users.id AS user_id, users.rating AS rating").
			Joins("JOIN users ON users.id = group_members.user_id").
			Where("group_members.group_id = ?", groupID).
			Scan(&members).Error; err != nil {
			return err
		}
		pairs := scoring.PairByRating(members)
		if len(pairs) == 0 {
			return nil
		}

		var topics []Topic
		if err := tx.Order("created_at ASC, id ASC").Find(&topics).Error; err != nil {
			return err
		}
		if len(topics) == 0 {
			return scoring.Violation(ErrNoTopic, "no topics to assign for group %s", groupID)
		}
		topic := topics[scoring.WeekIndex(now)%int64(len(topics))]

		for _, p := range pairs {
			low, high := p.Key()
			created = append(created, LearningSession{
				ID:        newID(),
				GroupID:   groupID,
				WeekStart: week,
				PairLow:   low,
				PairHigh:  high,
				TopicID:   topic.ID,
				PlayerAID: p.A.UserID,
				PlayerBID: p.B.UserID,
				CreatedAt: now,
			})
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			slog.Info("weekly pairing already done concurrently", "group", groupID)
			return 0, nil
		}
		return 0, err
	}
	if len(created) > 0 {
		sessionsPaired.Add(float64(len(created)))
		e.publish(EventSessionsPaired, map[string]any{
			"groupId":   groupID,
			"weekStart": week,
			"sessions":  created,
		})
		slog.Info("weekly sessions created", "group", groupID, "count", len(created))
	}
	return len(created), nil
}

// RunPairing handles one scheduler trigger. An empty group id pairs every
// group; one failing group does not stop the others. Groups that violate a
// rule (no topics yet) are skipped, so the returned error only ever carries
// infrastructure failures.
func (e *Engine) RunPairing(ctx context.Context, t PairingTrigger) error {
	if t.GroupID != "" {
		_, err := e.CreateWeeklySessions(ctx, t.GroupID)
		return err
	}
	var ids []string
	if err := e.db.WithContext(ctx).Model(&Group{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return err
	}
	var failed int
	var firstErr error
	for _, id := range ids {
		_, err := e.CreateWeeklySessions(ctx, id)
		switch {
		case err == nil:
		case ruleKind(err) != "":
			slog.Warn("weekly pairing skipped", "group", id, "error", err)
		default:
			slog.Error("weekly pairing failed", "group", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("weekly pairing failed for %d of %d groups: %w", failed, len(ids), firstErr)
	}
	return nil
}

// TriggerPairing is the manual pairing entry point; only the group creator
// or an admin may use it.
func (e *Engine) TriggerPairing(ctx context.Context, groupID, userID string) (int, error) {
	if _, err := requireGroupAdmin(e.db.WithContext(ctx), groupID, userID); err != nil {
		return 0, err
	}
	return e.CreateWeeklySessions(ctx, groupID)
}

// CurrentSessions lists this week's sessions of a group.
func (e *Engine) CurrentSessions(ctx context.Context, groupID, userID string) ([]LearningSession, error) {
	db := e.db.WithContext(ctx)
	if _, err := membership(db, groupID, userID); err != nil {
		return nil, err
	}
	var out []LearningSession
	err := db.Where("group_id = ? AND week_start = ?", groupID, scoring.WeekStart(e.now())).
		Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// --- Responses ---

func lockSession(tx *gorm.DB, sessionID, userID string) (*LearningSession, error) {
	var s LearningSession
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", sessionID).Error; err != nil {
		return nil, notFound(err, "session")
	}
	if userID != s.PlayerAID && userID != s.PlayerBID {
		return nil, scoring.Violation(ErrNotSessionPlayer, "user %s is not in session %s", userID, sessionID)
	}
	if s.Completed {
		return nil, scoring.Violation(scoring.ErrAlreadyCompleted, "session %s is completed", sessionID)
	}
	return &s, nil
}

type ResponseInput struct {
	SessionID  string `json:"-"`
	UserID     string `json:"-"`
	QuestionID string `json:"questionId"`
	Selected   *int   `json:"selected"`
}

// RecordResponse grades one answer server-side and adds its points to the
// player's session score. Each question can be answered once per player.
func (e *Engine) RecordResponse(ctx context.Context, in ResponseInput) (*SessionResponse, error) {
	if in.QuestionID == "" || in.Selected == nil {
		return nil, scoring.Violation(ErrInvalidInput, "questionId and selected are required")
	}
	now := e.now()
	var resp SessionResponse
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := lockSession(tx, in.SessionID, in.UserID)
		if err != nil {
			return err
		}
		var q TopicQuestion
		if err := tx.First(&q, "id = ? AND topic_id = ?", in.QuestionID, s.TopicID).Error; err != nil {
			return notFound(err, "question")
		}
		resp = SessionResponse{
			SessionID:  s.ID,
			QuestionID: q.ID,
			UserID:     in.UserID,
			Selected:   *in.Selected,
			Correct:    *in.Selected == q.AnswerIndex,
			AnsweredAt: now,
		}
		if resp.Correct {
			resp.PointsAwarded = q.Points
		}
		if err := tx.Create(&resp).Error; err != nil {
			if isUniqueViolation(err) {
				return scoring.Violation(ErrAlreadyAnswered, "question %s already answered", q.ID)
			}
			return err
		}
		column := "player_a_score"
		if in.UserID == s.PlayerBID {
			column = "player_b_score"
		}
		return tx.Model(&LearningSession{}).Where("id = ?", s.ID).
			Update(column, gorm.Expr(column+" + ?", resp.PointsAwarded)).Error
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Completion ---

type EloChange struct {
	OldRating float64 `json:"oldRating"`
	NewRating float64 `json:"newRating"`
	Change    float64 `json:"change"`
}

type SessionCompletion struct {
	Session    LearningSession `json:"session"`
	EloChanges struct {
		PlayerA EloChange `json:"playerA"`
		PlayerB EloChange `json:"playerB"`
	} `json:"eloChanges"`
}

// CompleteSession settles a session once: both players must have answered
// every question, then the completed flag flips and both ratings move by
// Elo in the same transaction.
func (e *Engine) CompleteSession(ctx context.Context, sessionID, userID string) (*SessionCompletion, error) {
	now := e.now()
	var out SessionCompletion
	var ledger []RatingEvent
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := lockSession(tx, sessionID, userID)
		if err != nil {
			return err
		}
		var questions int64
		if err := tx.Model(&TopicQuestion{}).Where("topic_id = ?", s.TopicID).Count(&questions).Error; err != nil {
			return err
		}
		for _, player := range []string{s.PlayerAID, s.PlayerBID} {
			var answered int64
			if err := tx.Model(&SessionResponse{}).
				Where("session_id = ? AND user_id = ?", s.ID, player).
				Count(&answered).Error; err != nil {
				return err
			}
			if answered < questions {
				return scoring.Violation(scoring.ErrIncompleteSession,
					"player %s answered %d of %d questions", player, answered, questions)
			}
		}

		users, err := lockUsers(tx, s.PlayerAID, s.PlayerBID)
		if err != nil {
			return err
		}
		a, b := users[s.PlayerAID], users[s.PlayerBID]
		res := scoring.Elo(a.Rating, b.Rating, s.PlayerAScore, s.PlayerBScore, e.k)

		upd := tx.Model(&LearningSession{}).
			Where("id = ? AND completed = ?", s.ID, false).
			Updates(map[string]any{"completed": true, "completed_at": now})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected != 1 {
			return scoring.Violation(scoring.ErrAlreadyCompleted, "session %s completed concurrently", s.ID)
		}
		s.Completed, s.CompletedAt = true, &now

		out.EloChanges.PlayerA = EloChange{OldRating: a.Rating, NewRating: res.NewRatingA, Change: res.NewRatingA - a.Rating}
		out.EloChanges.PlayerB = EloChange{OldRating: b.Rating, NewRating: res.NewRatingB, Change: res.NewRatingB - b.Rating}
		evA, err := applyRating(tx, a, out.EloChanges.PlayerA.Change, scoring.CauseSessionElo, s.ID, now)
		if err != nil {
			return err
		}
		evB, err := applyRating(tx, b, out.EloChanges.PlayerB.Change, scoring.CauseSessionElo, s.ID, now)
		if err != nil {
			return err
		}
		ledger = append(ledger, evA, evB)
		out.Session = *s
		return nil
	})
	if err != nil {
		return nil, err
	}
	sessionsCompleted.Inc()
	e.publish(EventSessionCompleted, out)
	e.afterRatingChange(ctx, ledger...)
	return &out, nil
}
