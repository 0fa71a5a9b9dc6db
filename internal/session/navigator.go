package session

import (
	"sort"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
)

// Navigator is pure view state over the question list and the draft: current
// question, answered flags, progress counts. It persists nothing, which is
// what makes reload recovery trivial — rebuild it from the fetched attempt.
type Navigator struct {
	questions []model.Question
	draft     *Draft
	index     int
}

// NewNavigator creates a navigator over the assignment's questions in
// display order.
func NewNavigator(assignment *model.Assignment, draft *Draft) *Navigator {
	questions := make([]model.Question, len(assignment.Questions))
	copy(questions, assignment.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderNum < questions[j].OrderNum
	})
	return &Navigator{questions: questions, draft: draft}
}

// Count returns the total number of questions.
func (n *Navigator) Count() int {
	return len(n.questions)
}

// Index returns the current question position.
func (n *Navigator) Index() int {
	return n.index
}

// Current returns the question at the current position, or nil for an empty
// assignment.
func (n *Navigator) Current() *model.Question {
	if len(n.questions) == 0 {
		return nil
	}
	return &n.questions[n.index]
}

// Next advances to the following question. Returns false at the end.
func (n *Navigator) Next() bool {
	if n.index+1 >= len(n.questions) {
		return false
	}
	n.index++
	return true
}

// Prev moves to the preceding question. Returns false at the start.
func (n *Navigator) Prev() bool {
	if n.index == 0 {
		return false
	}
	n.index--
	return true
}

// JumpTo moves directly to position i. Returns false when out of range.
func (n *Navigator) JumpTo(i int) bool {
	if i < 0 || i >= len(n.questions) {
		return false
	}
	n.index = i
	return true
}

// Answered reports whether the question at position i has a draft value.
func (n *Navigator) Answered(i int) bool {
	if i < 0 || i >= len(n.questions) {
		return false
	}
	return n.draft.Answered(n.questions[i].ID)
}

// Progress returns answered and total counts.
func (n *Navigator) Progress() (answered, total int) {
	return n.draft.AnsweredCount(), len(n.questions)
}

// UnansweredRequired returns the IDs of required questions with no value,
// in display order. A non-empty result is the cue for a confirm dialog
// before submission.
func (n *Navigator) UnansweredRequired() []uuid.UUID {
	var missing []uuid.UUID
	for _, q := range n.questions {
		if q.Required && !n.draft.Answered(q.ID) {
			missing = append(missing, q.ID)
		}
	}
	return missing
}
