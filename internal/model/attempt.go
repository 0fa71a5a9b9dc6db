package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states. "not started" is the
// absence of a row; a student-visible attempt always begins in progress.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusGraded     AttemptStatus = "graded"
	AttemptStatusAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether no further student-driven mutation is possible.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusGraded || s == AttemptStatusAbandoned
}

// Answer is one question's response, owned by its parent attempt. The
// question type is snapshotted at answer time for audit purposes; the live
// type in the catalog may change afterwards.
type Answer struct {
	QuestionType     QuestionType    `json:"question_type"`
	Value            json.RawMessage `json:"value"`
	TimeSpentSeconds int             `json:"time_spent_seconds,omitempty"` // advisory
}

// Attempt represents one student's work against one assignment. The
// (StudentID, AssignmentID) pair is the logical identity; ID is the
// surrogate key all subsequent calls use.
type Attempt struct {
	ID               uuid.UUID            `json:"id"`
	StudentID        int                  `json:"student_id"`
	AssignmentID     uuid.UUID            `json:"assignment_id"`
	Status           AttemptStatus        `json:"status"`
	Answers          map[uuid.UUID]Answer `json:"answers"`
	ElapsedSeconds   int                  `json:"elapsed_seconds"`
	CheckpointSeq    uint64               `json:"checkpoint_seq"`
	StartedAt        time.Time            `json:"started_at"`
	LastCheckpointAt time.Time            `json:"last_checkpoint_at"`
	SubmittedAt      *time.Time           `json:"submitted_at,omitempty"`
	Score            *float64             `json:"score,omitempty"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (a *Attempt) Clone() *Attempt {
	cp := *a
	cp.Answers = make(map[uuid.UUID]Answer, len(a.Answers))
	for qid, ans := range a.Answers {
		v := make(json.RawMessage, len(ans.Value))
		copy(v, ans.Value)
		ans.Value = v
		cp.Answers[qid] = ans
	}
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		cp.SubmittedAt = &t
	}
	if a.Score != nil {
		s := *a.Score
		cp.Score = &s
	}
	return &cp
}

// AnswerInput is a single incoming answer value within a checkpoint delta.
type AnswerInput struct {
	Value            json.RawMessage `json:"value" binding:"required"`
	TimeSpentSeconds int             `json:"time_spent_seconds" binding:"omitempty,min=0"`
}

// StartAttemptRequest is the payload for starting (or resuming) an attempt.
type StartAttemptRequest struct {
	AssignmentID uuid.UUID `json:"assignment_id" binding:"required"`
}

// CheckpointRequest is the payload for a non-final save. Sequence is assigned
// by the client's autosave scheduler and must be strictly increasing per
// attempt; a retry reuses the sequence of the flush it repeats, which is what
// makes the elapsed-time advance idempotent under network replay.
type CheckpointRequest struct {
	AnswersDelta              map[string]AnswerInput `json:"answers_delta"`
	ClientElapsedDeltaSeconds int                    `json:"client_elapsed_delta_seconds" binding:"min=0"`
	Sequence                  uint64                 `json:"sequence" binding:"required,min=1"`
}

// SubmitAttemptRequest is the payload for the final, terminal save.
type SubmitAttemptRequest struct {
	FinalAnswersDelta         map[string]AnswerInput `json:"final_answers_delta"`
	ClientElapsedDeltaSeconds int                    `json:"client_elapsed_delta_seconds" binding:"min=0"`
	Sequence                  uint64                 `json:"sequence" binding:"required,min=1"`
}

// AttemptState is the reload-recovery payload: everything a client needs to
// rebuild its draft, navigator, and countdown after a crash or page reload.
type AttemptState struct {
	Attempt                  *Attempt `json:"attempt"`
	RemainingSeconds         float64  `json:"remaining_seconds"`
	AutosaveIntervalSeconds  int      `json:"autosave_interval_seconds"`
	MaxCheckpointIntervalSec int      `json:"max_checkpoint_interval_seconds"`
}

// SubmittedEvent is the fire-and-forget hand-off pushed to the grading queue
// when an attempt reaches the submitted state.
type SubmittedEvent struct {
	AttemptID      uuid.UUID            `json:"attempt_id"`
	StudentID      int                  `json:"student_id"`
	AssignmentID   uuid.UUID            `json:"assignment_id"`
	Answers        map[uuid.UUID]Answer `json:"answers"`
	ElapsedSeconds int                  `json:"elapsed_seconds"`
	SubmittedAt    time.Time            `json:"submitted_at"`
}

// GradeResult is the payload the external grader pushes back onto the
// grade-results queue once scoring completes.
type GradeResult struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Score     float64   `json:"score"`
}
