package repository

import (
	"context"
	"errors"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// AttemptStore is the persistence contract the session authority relies on.
//
// The core primitive is ApplyCheckpoint: a single conditional update that
// merges an answer delta, advances elapsed time, and (optionally) flips the
// attempt to submitted — but only while the stored status is in_progress.
// When the record is already terminal the stored row is returned unchanged
// with applied=false. There is no read-then-write window anywhere in the
// contract, so two racing submits cannot both advance state.
type AttemptStore interface {
	// Create inserts a new in-progress attempt unless one already exists for
	// the (student, assignment) pair. It returns created=false and the
	// existing row when the pair already has a non-terminal attempt.
	Create(ctx context.Context, attempt *model.Attempt) (created bool, current *model.Attempt, err error)

	Get(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error)

	// GetActive returns the single in_progress attempt for the pair, or
	// ErrNotFound when none exists.
	GetActive(ctx context.Context, studentID int, assignmentID uuid.UUID) (*model.Attempt, error)

	// ApplyCheckpoint merges delta (last write wins per question), advances
	// elapsed_seconds by elapsedDeltaSeconds — but only when seq is greater
	// than the stored checkpoint sequence, which makes a replayed flush
	// advance time exactly once — and, when submit is true, atomically
	// transitions the attempt to submitted.
	ApplyCheckpoint(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.Answer, elapsedDeltaSeconds int, seq uint64, submit bool) (attempt *model.Attempt, applied bool, err error)

	// MarkAbandoned transitions an in_progress attempt to abandoned. Terminal
	// attempts are returned unchanged.
	MarkAbandoned(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error)

	// MarkGraded records the external grader's score, transitioning a
	// submitted attempt to graded.
	MarkGraded(ctx context.Context, attemptID uuid.UUID, score float64) (*model.Attempt, error)

	ListByAssignment(ctx context.Context, assignmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error)
}
