package scoring

import "fmt"

// TaskType decides how a submission is scored.
type TaskType string

const (
	TaskManual   TaskType = "MANUAL"
	TaskAutoQuiz TaskType = "AUTO_QUIZ"
	TaskHybrid   TaskType = "HYBRID"
)

func ParseTaskType(s string) (TaskType, error) {
	switch t := TaskType(s); t {
	case TaskManual, TaskAutoQuiz, TaskHybrid:
		return t, nil
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// Question is the scoring view of a multiple-choice question.
type Question struct {
	Choices     []string
	AnswerIndex int
	Points      int
}

// Validate checks the invariants a stored question must hold.
func (q Question) Validate() error {
	if len(q.Choices) < 2 {
		return fmt.Errorf("question needs at least 2 choices, got %d", len(q.Choices))
	}
	if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
		return fmt.Errorf("answer index %d out of range [0,%d)", q.AnswerIndex, len(q.Choices))
	}
	if q.Points < 0 {
		return fmt.Errorf("points must be >= 0, got %d", q.Points)
	}
	return nil
}

type QuizScore struct {
	AutoScore     int
	TotalPossible int
	Correct       int
}

// ScoreQuiz grades answers positionally against questions. A missing answer
// or an index outside the choices counts as wrong.
func ScoreQuiz(questions []Question, answers []int) QuizScore {
	var s QuizScore
	for i, q := range questions {
		s.TotalPossible += q.Points
		if i < len(answers) && answers[i] == q.AnswerIndex {
			s.AutoScore += q.Points
			s.Correct++
		}
	}
	return s
}

// InitialStatus is the status a fresh submission starts in. Only an
// auto-quiz that was actually graded skips peer review.
func InitialStatus(t TaskType, graded bool) SubmissionStatus {
	if t == TaskAutoQuiz && graded {
		return StatusAutoScored
	}
	return StatusPending
}
