package main

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vmxio.com/peer-learn/internal/scoring"
)

const (
	defaultPointValue      = 10
	defaultVotingThreshold = 0.6
	defaultQuestionPoints  = 1
	votingGrace            = 24 * time.Hour
)

// Engine runs every state-changing operation inside one database
// transaction and emits events only after commit.
type Engine struct {
	db            *gorm.DB
	events        Publisher
	board         LeaderboardCache
	k             float64
	initialRating float64
	now           func() time.Time
}

type EngineOption func(*Engine)

func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.events = p
		}
	}
}

func WithLeaderboardCache(c LeaderboardCache) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.board = c
		}
	}
}

func WithEloK(k float64) EngineOption {
	return func(e *Engine) { e.k = k }
}

func WithInitialRating(r float64) EngineOption {
	return func(e *Engine) { e.initialRating = r }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(db *gorm.DB, opts ...EngineOption) *Engine {
	e := &Engine{
		db:            db,
		events:        nopPublisher{},
		board:         nopCache{},
		k:             scoring.DefaultK,
		initialRating: scoring.DefaultRating,
		now:           time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) publish(eventType string, payload any) {
	if err := e.events.Publish(eventType, payload); err != nil {
		slog.Warn("event publish failed", "type", eventType, "error", err)
	}
}

func newID() string { return uuid.New().String() }

// --- Users ---

// EnsureUser returns the user bound to an external identity, creating it
// with the initial rating on first sight.
func (e *Engine) EnsureUser(ctx context.Context, publicID string) (*User, error) {
	var u User
	err := e.db.WithContext(ctx).First(&u, "public_id = ?", publicID).Error
	if err == nil {
		return &u, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	u = User{ID: newID(), PublicID: publicID, Rating: e.initialRating}
	if err := e.db.WithContext(ctx).Create(&u).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// lost a race with a concurrent first request
		if err := e.db.WithContext(ctx).First(&u, "public_id = ?", publicID).Error; err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// applyRating moves a locked user's rating by delta and appends the ledger
// event in the caller's transaction.
func applyRating(tx *gorm.DB, u *User, delta float64, cause scoring.RatingCause, refID string, at time.Time) (RatingEvent, error) {
	res := tx.Model(&User{}).Where("id = ?", u.ID).Update("rating", gorm.Expr("rating + ?", delta))
	if res.Error != nil {
		return RatingEvent{}, res.Error
	}
	if res.RowsAffected != 1 {
		return RatingEvent{}, scoring.Violation(ErrNotFound, "user %s not found", u.ID)
	}
	u.Rating += delta
	ev := RatingEvent{
		UserID:      u.ID,
		Delta:       delta,
		RatingAfter: u.Rating,
		Cause:       cause,
		RefID:       refID,
		CreatedAt:   at,
	}
	if err := tx.Create(&ev).Error; err != nil {
		return RatingEvent{}, err
	}
	return ev, nil
}

// lockUsers loads users FOR UPDATE in id order so concurrent writers take
// row locks in the same sequence.
func lockUsers(tx *gorm.DB, ids ...string) (map[string]*User, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	var users []User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, scoring.Violation(ErrNotFound, "user %s not found", id)
		}
	}
	return out, nil
}

func (e *Engine) afterRatingChange(ctx context.Context, events ...RatingEvent) {
	userIDs := make([]string, 0, len(events))
	for _, ev := range events {
		ratingChanges.WithLabelValues(string(ev.Cause)).Inc()
		e.publish(EventRatingChanged, ev)
		userIDs = append(userIDs, ev.UserID)
	}
	var groupIDs []string
	if err := e.db.WithContext(ctx).Model(&GroupMember{}).
		Where("user_id IN ?", userIDs).Distinct().Pluck("group_id", &groupIDs).Error; err != nil {
		slog.Warn("leaderboard invalidation lookup failed", "error", err)
		return
	}
	e.board.Invalidate(ctx, groupIDs...)
}

// RatingHistory lists a user's ledger, oldest first.
func (e *Engine) RatingHistory(ctx context.Context, userID string) ([]RatingEvent, error) {
	var evs []RatingEvent
	err := e.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&evs).Error
	return evs, err
}

// --- Groups ---

func membership(tx *gorm.DB, groupID, userID string) (*GroupMember, error) {
	var m GroupMember
	err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, scoring.Violation(ErrNotGroupMember, "user %s is not in group %s", userID, groupID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// requireGroupAdmin loads the group and checks the user is its creator or an
// admin member. A missing group is NotFound before any membership check.
func requireGroupAdmin(tx *gorm.DB, groupID, userID string) (*Group, error) {
	var g Group
	if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
		return nil, notFound(err, "group")
	}
	m, err := membership(tx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if g.CreatorID != userID && m.Role != RoleAdmin {
		return nil, scoring.Violation(ErrForbidden, "only the group creator or an admin can do this")
	}
	return &g, nil
}

func memberCount(tx *gorm.DB, groupID string) (int, error) {
	var n int64
	err := tx.Model(&GroupMember{}).Where("group_id = ?", groupID).Count(&n).Error
	return int(n), err
}

func (e *Engine) CreateGroup(ctx context.Context, name, creatorID string) (*Group, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 80 {
		return nil, scoring.Violation(ErrInvalidInput, "name must be 2..80 chars")
	}
	now := e.now()
	g := Group{ID: newID(), Name: name, CreatorID: creatorID, CreatedAt: now}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&g).Error; err != nil {
			return err
		}
		return tx.Create(&GroupMember{GroupID: g.ID, UserID: creatorID, Role: RoleAdmin, JoinedAt: now}).Error
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (e *Engine) JoinGroup(ctx context.Context, groupID, userID string) (*GroupMember, error) {
	m := GroupMember{GroupID: groupID, UserID: userID, Role: RoleMember, JoinedAt: e.now()}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g Group
		if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
			return notFound(err, "group")
		}
		if err := tx.Create(&m).Error; err != nil {
			if isUniqueViolation(err) {
				return scoring.Violation(ErrAlreadyMember, "user %s already in group %s", userID, groupID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.board.Invalidate(ctx, groupID)
	return &m, nil
}

// --- Tasks ---

type QuestionInput struct {
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answerIndex"`
	Points      *int     `json:"points"`
}

type CreateTaskInput struct {
	GroupID          string          `json:"-"`
	CreatorID        string          `json:"-"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	TaskType         string          `json:"taskType"`
	PointValue       *int            `json:"pointValue"`
	DueDate          *time.Time      `json:"dueDate"`
	RequiresEvidence bool            `json:"requiresEvidence"`
	EvidencePrompt   *string         `json:"evidencePrompt"`
	VotingThreshold  *float64        `json:"votingThreshold"`
	VotingDeadline   *time.Time      `json:"votingDeadline"`
	Questions        []QuestionInput `json:"questions"`
}

// buildTask validates input and fills the defaults: 10 points, a 0.6
// threshold, one point per question and voting open for 24h past the due
// date.
func buildTask(in CreateTaskInput, now time.Time) (*Task, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, scoring.Violation(ErrInvalidInput, "title and description are required")
	}
	tt := scoring.TaskManual
	if in.TaskType != "" {
		var err error
		if tt, err = scoring.ParseTaskType(in.TaskType); err != nil {
			return nil, scoring.Violation(ErrInvalidInput, "%v", err)
		}
	}
	t := &Task{
		ID:               newID(),
		GroupID:          in.GroupID,
		CreatorID:        in.CreatorID,
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		TaskType:         tt,
		PointValue:       defaultPointValue,
		DueDate:          in.DueDate,
		RequiresEvidence: in.RequiresEvidence,
		EvidencePrompt:   in.EvidencePrompt,
		VotingThreshold:  defaultVotingThreshold,
		VotingDeadline:   in.VotingDeadline,
		CreatedAt:        now,
	}
	if in.PointValue != nil {
		if *in.PointValue <= 0 {
			return nil, scoring.Violation(ErrInvalidInput, "pointValue must be > 0")
		}
		t.PointValue = *in.PointValue
	}
	if in.VotingThreshold != nil {
		if *in.VotingThreshold < 0 || *in.VotingThreshold > 1 {
			return nil, scoring.Violation(ErrInvalidInput, "votingThreshold must be within [0,1]")
		}
		t.VotingThreshold = *in.VotingThreshold
	}
	if t.VotingDeadline == nil && t.DueDate != nil {
		d := t.DueDate.Add(votingGrace)
		t.VotingDeadline = &d
	}
	if tt == scoring.TaskAutoQuiz && len(in.Questions) == 0 {
		return nil, scoring.Violation(ErrInvalidInput, "an AUTO_QUIZ task needs questions")
	}
	for i, qi := range in.Questions {
		points := defaultQuestionPoints
		if qi.Points != nil {
			points = *qi.Points
		}
		q := TaskQuestion{
			Position:    i,
			Prompt:      qi.Prompt,
			Choices:     qi.Choices,
			AnswerIndex: qi.AnswerIndex,
			Points:      points,
		}
		if err := q.scoringQuestion().Validate(); err != nil {
			return nil, scoring.Violation(ErrInvalidInput, "question %d: %v", i, err)
		}
		t.Questions = append(t.Questions, q)
	}
	return t, nil
}

// CreateTask is restricted to the group creator and group admins.
func (e *Engine) CreateTask(ctx context.Context, in CreateTaskInput) (*Task, error) {
	t, err := buildTask(in, e.now())
	if err != nil {
		return nil, err
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireGroupAdmin(tx, in.GroupID, in.CreatorID); err != nil {
			return err
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func loadTask(tx *gorm.DB, taskID string) (*Task, error) {
	var t Task
	err := tx.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&t, "id = ?", taskID).Error
	if err != nil {
		return nil, notFound(err, "task")
	}
	return &t, nil
}

// GetTask returns a task to a member of its group.
func (e *Engine) GetTask(ctx context.Context, taskID, userID string) (*Task, error) {
	db := e.db.WithContext(ctx)
	t, err := loadTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := membership(db, t.GroupID, userID); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) ListTasks(ctx context.Context, groupID, userID string) ([]Task, error) {
	db := e.db.WithContext(ctx)
	if _, err := membership(db, groupID, userID); err != nil {
		return nil, err
	}
	var ts []Task
	err := db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("group_id = ?", groupID).Order("created_at DESC").Find(&ts).Error
	return ts, err
}
