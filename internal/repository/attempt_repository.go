package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository is the PostgreSQL-backed AttemptStore.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, student_id, assignment_id, status, answers, elapsed_seconds,
	 checkpoint_seq, started_at, last_checkpoint_at, submitted_at, score`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var answers []byte
	var seq int64
	err := row.Scan(&a.ID, &a.StudentID, &a.AssignmentID, &a.Status, &answers,
		&a.ElapsedSeconds, &seq, &a.StartedAt, &a.LastCheckpointAt, &a.SubmittedAt, &a.Score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.CheckpointSeq = uint64(seq)
	a.Answers = make(map[uuid.UUID]model.Answer)
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return a, nil
}

// Create inserts a new in-progress attempt. The partial unique index on
// (student_id, assignment_id) WHERE status = 'in_progress' makes the insert a
// no-op when a non-terminal attempt already exists; the existing row is then
// fetched and returned so a duplicate start resumes instead of erroring.
func (r *AttemptRepository) Create(ctx context.Context, attempt *model.Attempt) (bool, *model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (student_id, assignment_id, status, answers)
		 VALUES ($1, $2, $3, '{}'::jsonb)
		 ON CONFLICT (student_id, assignment_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING `+attemptColumns,
		attempt.StudentID, attempt.AssignmentID, model.AttemptStatusInProgress,
	)

	created, err := scanAttempt(row)
	if err == nil {
		return true, created, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, nil, fmt.Errorf("insert attempt: %w", err)
	}

	// Conflict: another request won the race (or the attempt already
	// existed). Return the active row as-is.
	existing, err := r.GetActive(ctx, attempt.StudentID, attempt.AssignmentID)
	if err != nil {
		return false, nil, fmt.Errorf("fetch attempt after conflict: %w", err)
	}
	return false, existing, nil
}

// Get retrieves an attempt by its surrogate ID.
func (r *AttemptRepository) Get(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, attemptID))
}

// GetActive retrieves the in-progress attempt for a (student, assignment) pair.
func (r *AttemptRepository) GetActive(ctx context.Context, studentID int, assignmentID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE student_id = $1 AND assignment_id = $2 AND status = $3`,
		studentID, assignmentID, model.AttemptStatusInProgress))
}

// ApplyCheckpoint performs the single conditional update behind both
// checkpoint and submit. The status guard in the WHERE clause is the only
// concurrency control: once a racing submit flips the row, every later
// update matches zero rows and the stored record is returned untouched.
func (r *AttemptRepository) ApplyCheckpoint(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.Answer, elapsedDeltaSeconds int, seq uint64, submit bool) (*model.Attempt, bool, error) {
	deltaJSON, err := json.Marshal(delta)
	if err != nil {
		return nil, false, fmt.Errorf("encode delta: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET answers = answers || $2::jsonb,
		     elapsed_seconds = elapsed_seconds + CASE WHEN $3::bigint > checkpoint_seq THEN $4 ELSE 0 END,
		     checkpoint_seq = GREATEST(checkpoint_seq, $3::bigint),
		     last_checkpoint_at = NOW(),
		     status = CASE WHEN $5 THEN 'submitted' ELSE status END,
		     submitted_at = CASE WHEN $5 THEN NOW() ELSE submitted_at END
		 WHERE id = $1 AND status = $6
		 RETURNING `+attemptColumns,
		attemptID, deltaJSON, int64(seq), elapsedDeltaSeconds, submit, model.AttemptStatusInProgress,
	)

	updated, err := scanAttempt(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("apply checkpoint: %w", err)
	}

	// Zero rows matched: either the attempt does not exist, or it is already
	// terminal. Re-read to distinguish; a terminal row is returned unchanged
	// so retried submits are no-ops rather than errors.
	current, err := r.Get(ctx, attemptID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// MarkAbandoned transitions an in-progress attempt to abandoned (administrative).
func (r *AttemptRepository) MarkAbandoned(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $2, last_checkpoint_at = NOW()
		 WHERE id = $1 AND status = $3
		 RETURNING `+attemptColumns,
		attemptID, model.AttemptStatusAbandoned, model.AttemptStatusInProgress,
	)

	updated, err := scanAttempt(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("mark abandoned: %w", err)
	}
	return r.Get(ctx, attemptID)
}

// MarkGraded records the external grader's score on a submitted attempt.
func (r *AttemptRepository) MarkGraded(ctx context.Context, attemptID uuid.UUID, score float64) (*model.Attempt, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $2, score = $3
		 WHERE id = $1 AND status = $4
		 RETURNING `+attemptColumns,
		attemptID, model.AttemptStatusGraded, score, model.AttemptStatusSubmitted,
	)

	updated, err := scanAttempt(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("mark graded: %w", err)
	}
	return r.Get(ctx, attemptID)
}

// ListByAssignment retrieves attempts for an assignment with pagination,
// newest first.
func (r *AttemptRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assignment_id = $1`, assignmentID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE assignment_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`,
		assignmentID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, total, rows.Err()
}
