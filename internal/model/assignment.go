package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeFreeText       QuestionType = "FREE_TEXT"
)

// Question is a single assignment question as published by the catalog.
// Options is raw JSON whose shape depends on the question type.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options,omitempty"`
	Required     bool            `json:"required"`
	OrderNum     int             `json:"order_num"`
}

// Assignment is the catalog's read-only view of one assignment: everything
// the attempt core needs to gate starts, validate answers, and bound time.
type Assignment struct {
	ID                    uuid.UUID  `json:"id"`
	Title                 string     `json:"title"`
	DueDate               time.Time  `json:"due_date"`
	DurationMinutes       int        `json:"duration_minutes"`
	TotalMarks            float64    `json:"total_marks"`
	LateSubmissionAllowed bool       `json:"late_submission_allowed"`
	Questions             []Question `json:"questions"`
}

// QuestionSet returns the set of valid question IDs for reference checks.
func (a *Assignment) QuestionSet() map[uuid.UUID]Question {
	set := make(map[uuid.UUID]Question, len(a.Questions))
	for _, q := range a.Questions {
		set[q.ID] = q
	}
	return set
}

// OpenAt reports whether a new attempt may be started (or work submitted)
// at the given instant.
func (a *Assignment) OpenAt(t time.Time) bool {
	return t.Before(a.DueDate) || a.LateSubmissionAllowed
}
