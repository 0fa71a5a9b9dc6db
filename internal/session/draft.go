// Package session is the client-side attempt runtime: an in-memory answer
// draft, the autosave scheduler that reconciles it with the session
// authority, an advisory countdown timer, and the question navigator view
// state. Nothing in this package is authoritative; the server owns attempt
// state and the whole runtime is reconstructable from a fetched attempt.
package session

import (
	"sync"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
)

// Draft is the in-memory answer buffer user input writes into. Edits
// coalesce per question: only the latest value per question is ever sent,
// never a replay of intermediate edits.
type Draft struct {
	mu      sync.Mutex
	pending map[uuid.UUID]model.AnswerInput // edited since last successful flush
	saved   map[uuid.UUID]model.AnswerInput // acknowledged by the authority
}

// NewDraft creates an empty draft.
func NewDraft() *Draft {
	return &Draft{
		pending: make(map[uuid.UUID]model.AnswerInput),
		saved:   make(map[uuid.UUID]model.AnswerInput),
	}
}

// Restore rebuilds the draft from an attempt fetched at session resume.
// Stored answers are already persisted, so they seed the saved set only.
func (d *Draft) Restore(attempt *model.Attempt) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = make(map[uuid.UUID]model.AnswerInput)
	d.saved = make(map[uuid.UUID]model.AnswerInput, len(attempt.Answers))
	for qid, ans := range attempt.Answers {
		d.saved[qid] = model.AnswerInput{
			Value:            ans.Value,
			TimeSpentSeconds: ans.TimeSpentSeconds,
		}
	}
}

// Set records an answer edit, replacing any pending value for the question.
func (d *Draft) Set(questionID uuid.UUID, in model.AnswerInput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[questionID] = in
}

// TakeDelta removes and returns the pending delta. The caller owns the
// returned map; on flush failure it must be handed back via Requeue.
func (d *Draft) TakeDelta() map[uuid.UUID]model.AnswerInput {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := d.pending
	d.pending = make(map[uuid.UUID]model.AnswerInput)
	return delta
}

// Requeue returns a failed flush's delta to the pending set. A question the
// user re-edited in the meantime keeps its newer value.
func (d *Draft) Requeue(delta map[uuid.UUID]model.AnswerInput) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for qid, in := range delta {
		if _, edited := d.pending[qid]; !edited {
			d.pending[qid] = in
		}
	}
}

// MarkSaved records a successfully flushed delta as persisted.
func (d *Draft) MarkSaved(delta map[uuid.UUID]model.AnswerInput) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for qid, in := range delta {
		d.saved[qid] = in
	}
}

// Answered reports whether the question has any value, saved or pending.
func (d *Draft) Answered(questionID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[questionID]; ok {
		return true
	}
	_, ok := d.saved[questionID]
	return ok
}

// AnsweredCount returns how many distinct questions have a value.
func (d *Draft) AnsweredCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(d.saved)+len(d.pending))
	for qid := range d.saved {
		seen[qid] = struct{}{}
	}
	for qid := range d.pending {
		seen[qid] = struct{}{}
	}
	return len(seen)
}

// PendingCount returns how many edits await the next flush.
func (d *Draft) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
