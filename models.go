package main

import (
	"time"

	"gorm.io/datatypes"

	"vmxio.com/peer-learn/internal/scoring"
)

// --- Users & groups ---

type User struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	PublicID    string    `gorm:"uniqueIndex;size:128;not null" json:"-"` // subject of the external identity
	DisplayName *string   `json:"displayName,omitempty"`
	Rating      float64   `gorm:"not null" json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

type Group struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatorID string    `gorm:"size:36;not null" json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type GroupMember struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	GroupID  string    `gorm:"uniqueIndex:idx_group_member,priority:1;size:36;not null" json:"groupId"`
	UserID   string    `gorm:"uniqueIndex:idx_group_member,priority:2;size:36;not null;index" json:"userId"`
	Role     string    `gorm:"size:16;not null" json:"role"`
	JoinedAt time.Time `gorm:"not null" json:"joinedAt"`
}

// --- Tasks ---

type Task struct {
	ID               string           `gorm:"primaryKey;size:36" json:"id"`
	GroupID          string           `gorm:"index;size:36;not null" json:"groupId"`
	CreatorID        string           `gorm:"size:36;not null" json:"creatorId"`
	Title            string           `gorm:"not null" json:"title"`
	Description      string           `gorm:"not null" json:"description"`
	TaskType         scoring.TaskType `gorm:"size:16;not null" json:"taskType"`
	PointValue       int              `gorm:"not null" json:"pointValue"`
	DueDate          *time.Time       `json:"dueDate,omitempty"`
	RequiresEvidence bool             `gorm:"not null" json:"requiresEvidence"`
	EvidencePrompt   *string          `json:"evidencePrompt,omitempty"`
	VotingThreshold  float64          `gorm:"not null" json:"votingThreshold"`
	VotingDeadline   *time.Time       `json:"votingDeadline,omitempty"`
	Questions        []TaskQuestion   `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

type TaskQuestion struct {
	ID          uint                        `gorm:"primaryKey" json:"-"`
	TaskID      string                      `gorm:"index;size:36;not null" json:"-"`
	Position    int                         `gorm:"not null" json:"position"`
	Prompt      string                      `gorm:"not null" json:"prompt"`
	Choices     datatypes.JSONSlice[string] `gorm:"not null" json:"choices"`
	AnswerIndex int                         `gorm:"not null" json:"-"`
	Points      int                         `gorm:"not null" json:"points"`
}

func (q TaskQuestion) scoringQuestion() scoring.Question {
	return scoring.Question{Choices: q.Choices, AnswerIndex: q.AnswerIndex, Points: q.Points}
}

type TaskSubmission struct {
	ID           string                   `gorm:"primaryKey;size:36" json:"id"`
	TaskID       string                   `gorm:"uniqueIndex:idx_submission_task_user,priority:1;size:36;not null" json:"taskId"`
	UserID       string                   `gorm:"uniqueIndex:idx_submission_task_user,priority:2;size:36;not null;index" json:"userId"`
	EvidenceText *string                  `json:"evidenceText,omitempty"`
	EvidenceURL  *string                  `json:"evidenceUrl,omitempty"`
	Answers      datatypes.JSONSlice[int] `json:"answers,omitempty"`
	AutoScore    *int                     `json:"autoScore,omitempty"`
	PeerScore    int                      `gorm:"not null" json:"peerScore"`
	Score        int                      `gorm:"not null" json:"score"`
	Status       scoring.SubmissionStatus `gorm:"size:16;not null;index" json:"status"`
	SubmittedAt  time.Time                `gorm:"not null" json:"submittedAt"`
	DecidedAt    *time.Time               `json:"decidedAt,omitempty"`
	Votes        []TaskVote               `gorm:"foreignKey:SubmissionID" json:"votes,omitempty"`
}

type TaskVote struct {
	ID           string             `gorm:"primaryKey;size:36" json:"id"`
	SubmissionID string             `gorm:"uniqueIndex:idx_vote_submission_voter,priority:1;size:36;not null" json:"submissionId"`
	VoterID      string             `gorm:"uniqueIndex:idx_vote_submission_voter,priority:2;size:36;not null" json:"voterId"`
	Vote         scoring.VoteChoice `gorm:"size:8;not null" json:"vote"`
	Comment      *string            `json:"comment,omitempty"`
	CreatedAt    time.Time          `gorm:"not null" json:"createdAt"`
}

// RatingEvent is the append-only audit of every rating change. A user's
// rating equals the initial rating folded with all their deltas.
type RatingEvent struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	UserID      string              `gorm:"index;size:36;not null" json:"userId"`
	Delta       float64             `gorm:"not null" json:"delta"`
	RatingAfter float64             `gorm:"not null" json:"ratingAfter"`
	Cause       scoring.RatingCause `gorm:"size:16;not null" json:"cause"`
	RefID       string              `gorm:"size:36;not null" json:"refId"`
	CreatedAt   time.Time           `gorm:"not null" json:"createdAt"`
}

// --- Learning sessions ---

type Topic struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	Title       string          `gorm:"not null" json:"title"`
	Description string          `json:"description"`
	Questions   []TopicQuestion `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type TopicQuestion struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	TopicID     string                      `gorm:"index;size:36;not null" json:"topicId"`
	Position    int                         `gorm:"not null" json:"position"`
	Prompt      string                      `gorm:"not null" json:"prompt"`
	Choices     datatypes.JSONSlice[string] `gorm:"not null" json:"choices"`
	AnswerIndex int                         `gorm:"not null" json:"-"`
	Points      int                         `gorm:"not null" json:"points"`
}

type LearningSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	GroupID   string    `gorm:"uniqueIndex:idx_session_pair,priority:1;index:idx_session_week,priority:1;size:36;not null" json:"groupId"`
	WeekStart time.Time `gorm:"uniqueIndex:idx_session_pair,priority:2;index:idx_session_week,priority:2;not null" json:"weekStart"`
	// PairLow/PairHigh hold the unordered pair so the unique index covers
	// (A,B) and (B,A) alike.
	PairLow      string     `gorm:"uniqueIndex:idx_session_pair,priority:3;size:36;not null" json:"-"`
	PairHigh     string     `gorm:"uniqueIndex:idx_session_pair,priority:4;size:36;not null" json:"-"`
	TopicID      string     `gorm:"size:36;not null" json:"topicId"`
	PlayerAID    string     `gorm:"index;size:36;not null" json:"playerAId"`
	PlayerBID    string     `gorm:"index;size:36;not null" json:"playerBId"`
	PlayerAScore int        `gorm:"not null" json:"playerAScore"`
	PlayerBScore int        `gorm:"not null" json:"playerBScore"`
	Completed    bool       `gorm:"not null" json:"completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type SessionResponse struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"uniqueIndex:idx_response,priority:1;size:36;not null" json:"sessionId"`
	QuestionID    string    `gorm:"uniqueIndex:idx_response,priority:2;size:36;not null" json:"questionId"`
	UserID        string    `gorm:"uniqueIndex:idx_response,priority:3;size:36;not null" json:"userId"`
	Selected      int       `gorm:"not null" json:"selected"`
	Correct       bool      `gorm:"not null" json:"correct"`
	PointsAwarded int       `gorm:"not null" json:"pointsAwarded"`
	AnsweredAt    time.Time `gorm:"not null" json:"answeredAt"`
}
