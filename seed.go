package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ==== JSON input structures ====

type QInputOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QInput struct {
	ID              string         `json:"id"`
	QuestionText    string         `json:"questionText"`
	Options         []QInputOption `json:"options"`
	CorrectOptionID string         `json:"correctOptionId"`
	Points          int            `json:"points"` // defaults to 1
}

type TopicInput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Questions   []QInput `json:"questions"`
}

// ==== Seeder ====

// SeedFromJSON loads session topics. Accepts either [ ... ] or
// { "topics": [ ... ] }. Topic order in the file is the rotation order.
func SeedFromJSON(db *gorm.DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var wrapper struct {
		Topics []TopicInput `json:"topics"`
	}
	var arr []TopicInput

	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Topics) > 0 {
		arr = wrapper.Topics
	} else if err := json.Unmarshal(raw, &arr); err != nil {
		return fmt.Errorf("json parse: %w", err)
	}

	topics, err := buildTopics(arr, time.Now().UTC())
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for i := range topics {
			if err := tx.Create(&topics[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func buildTopics(arr []TopicInput, base time.Time) ([]Topic, error) {
	seen := map[string]bool{}
	dups := []string{}
	for _, t := range arr {
		for _, q := range t.Questions {
			if q.ID != "" && seen[q.ID] {
				dups = append(dups, q.ID)
			}
			seen[q.ID] = true
		}
	}
	if len(dups) > 0 {
		return nil, fmt.Errorf("duplicate question IDs in JSON: %v", dups)
	}

	topics := make([]Topic, 0, len(arr))
	for i, in := range arr {
		if strings.TrimSpace(in.Title) == "" || len(in.Questions) == 0 {
			return nil, fmt.Errorf("topic %d: title and questions are required", i)
		}
		t := Topic{
			ID:          in.ID,
			Title:       in.Title,
			Description: in.Description,
			// distinct timestamps keep file order as rotation order
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if t.ID == "" {
			t.ID = newID()
		}
		for pos, qi := range in.Questions {
			q := TopicQuestion{
				ID:          qi.ID,
				TopicID:     t.ID,
				Position:    pos,
				Prompt:      qi.QuestionText,
				AnswerIndex: -1,
				Points:      qi.Points,
			}
			if q.ID == "" {
				q.ID = newID()
			}
			if q.Points == 0 {
				q.Points = defaultQuestionPoints
			}
			for k, o := range qi.Options {
				q.Choices = append(q.Choices, o.Text)
				if stringsLower(o.ID) == stringsLower(qi.CorrectOptionID) {
					q.AnswerIndex = k
				}
			}
			sq := TaskQuestion{Choices: q.Choices, AnswerIndex: q.AnswerIndex, Points: q.Points}.scoringQuestion()
			if err := sq.Validate(); err != nil {
				return nil, fmt.Errorf("topic %q question %d: %w", in.Title, pos, err)
			}
			t.Questions = append(t.Questions, q)
		}
		topics = append(topics, t)
	}
	return topics, nil
}

// stringsLower normalizes option ids like "A".."D" to lowercase.
func stringsLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
