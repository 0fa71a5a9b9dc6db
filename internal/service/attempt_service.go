package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classforge/classforge-backend/internal/catalog"
	"github.com/classforge/classforge-backend/internal/config"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Attempt lifecycle errors.
var (
	ErrAssignmentNotFound       = errors.New("assignment not found")
	ErrAssignmentUnavailable    = errors.New("assignment is closed for new attempts")
	ErrAttemptNotFound          = errors.New("attempt not found")
	ErrInvalidQuestionReference = errors.New("answer references a question outside the assignment")
	ErrStorageUnavailable       = errors.New("attempt storage unavailable")
)

// GradingNotifier receives the fire-and-forget hand-off when an attempt
// reaches the submitted state. Failures are logged, never propagated:
// grading outages must not roll back a submission.
type GradingNotifier interface {
	Submitted(ctx context.Context, event *model.SubmittedEvent)
}

// AttemptService is the session authority: the sole writer of attempt state.
// Every mutation funnels through the store's conditional update, so the
// service itself needs no locks.
type AttemptService struct {
	store    repository.AttemptStore
	catalog  catalog.Catalog
	notifier GradingNotifier
	cfg      *config.Config
	log      zerolog.Logger

	// now is swappable so tests can control the clock.
	now func() time.Time
}

// NewAttemptService creates a new AttemptService. notifier may be nil when no
// grading pipeline is attached (dev mode).
func NewAttemptService(
	store repository.AttemptStore,
	cat catalog.Catalog,
	notifier GradingNotifier,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		store:    store,
		catalog:  cat,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With().Str("component", "attempt_service").Logger(),
		now:      time.Now,
	}
}

// StartAttempt creates a new in-progress attempt for the (student,
// assignment) pair, or returns the existing active one unchanged. Starting
// twice is always safe; the duplicate call resumes rather than duplicating.
func (s *AttemptService) StartAttempt(ctx context.Context, studentID int, assignmentID uuid.UUID) (*model.Attempt, error) {
	assignment, err := s.catalog.Get(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// Resume path first: an existing active attempt wins over the due-date
	// gate, so a student who started in time can keep working.
	existing, err := s.store.GetActive(ctx, studentID, assignmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if !assignment.OpenAt(s.now()) {
		return nil, ErrAssignmentUnavailable
	}

	attempt := &model.Attempt{
		StudentID:    studentID,
		AssignmentID: assignmentID,
	}
	created, current, err := s.store.Create(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if created {
		s.log.Info().
			Str("attempt_id", current.ID.String()).
			Int("student_id", studentID).
			Str("assignment_id", assignmentID.String()).
			Msg("Attempt started")
	}
	return current, nil
}

// Checkpoint merges an answer delta and advances server-side elapsed time.
// Terminal attempts are returned unchanged (a late autosave from a closed
// tab is a no-op, not an error).
func (s *AttemptService) Checkpoint(ctx context.Context, studentID int, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, clientElapsedDeltaSeconds int, seq uint64) (*model.Attempt, error) {
	return s.applyDelta(ctx, studentID, attemptID, delta, clientElapsedDeltaSeconds, seq, false)
}

// Submit applies a final checkpoint merge and transitions the attempt to
// submitted, atomically. Repeating the call returns the terminal record
// without reapplying the delta or double-counting elapsed time.
func (s *AttemptService) Submit(ctx context.Context, studentID int, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, clientElapsedDeltaSeconds int, seq uint64) (*model.Attempt, error) {
	return s.applyDelta(ctx, studentID, attemptID, delta, clientElapsedDeltaSeconds, seq, true)
}

func (s *AttemptService) applyDelta(ctx context.Context, studentID int, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, clientElapsedDeltaSeconds int, seq uint64, submit bool) (*model.Attempt, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.Terminal() {
		return attempt, nil
	}

	assignment, err := s.catalog.Get(ctx, attempt.AssignmentID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	answers, err := s.snapshotDelta(assignment, delta)
	if err != nil {
		return nil, err
	}

	capped := s.capElapsed(clientElapsedDeltaSeconds)

	updated, applied, err := s.store.ApplyCheckpoint(ctx, attemptID, answers, capped, seq, submit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if submit && applied {
		s.log.Info().
			Str("attempt_id", attemptID.String()).
			Int("elapsed_seconds", updated.ElapsedSeconds).
			Msg("Attempt submitted")
		s.handoffToGrading(ctx, updated)
	}
	return updated, nil
}

// snapshotDelta validates every delta key against the assignment's current
// question set and snapshots each question's type onto the stored answer.
func (s *AttemptService) snapshotDelta(assignment *model.Assignment, delta map[uuid.UUID]model.AnswerInput) (map[uuid.UUID]model.Answer, error) {
	questions := assignment.QuestionSet()
	answers := make(map[uuid.UUID]model.Answer, len(delta))
	for qid, in := range delta {
		q, ok := questions[qid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuestionReference, qid)
		}
		answers[qid] = model.Answer{
			QuestionType:     q.QuestionType,
			Value:            in.Value,
			TimeSpentSeconds: in.TimeSpentSeconds,
		}
	}
	return answers, nil
}

// capElapsed bounds the client-reported delta. Client clocks are untrusted;
// the cap limits how far a skewed or malicious report can move server time.
func (s *AttemptService) capElapsed(delta int) int {
	if delta < 0 {
		return 0
	}
	if limit := int(s.cfg.MaxCheckpointInterval.Seconds()); delta > limit {
		return limit
	}
	return delta
}

func (s *AttemptService) handoffToGrading(ctx context.Context, attempt *model.Attempt) {
	if s.notifier == nil || attempt.SubmittedAt == nil {
		return
	}
	s.notifier.Submitted(ctx, &model.SubmittedEvent{
		AttemptID:      attempt.ID,
		StudentID:      attempt.StudentID,
		AssignmentID:   attempt.AssignmentID,
		Answers:        attempt.Answers,
		ElapsedSeconds: attempt.ElapsedSeconds,
		SubmittedAt:    *attempt.SubmittedAt,
	})
}

// Abandon marks a stalled in-progress attempt as abandoned so a fresh start
// can create a new one. Administrative only; never exposed to students.
func (s *AttemptService) Abandon(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.store.MarkAbandoned(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.log.Info().Str("attempt_id", attemptID.String()).Msg("Attempt abandoned")
	return attempt, nil
}

// GetState returns the reload-recovery payload: the full attempt plus the
// server-computed remaining time. The client rebuilds its draft, navigator,
// and countdown entirely from this.
func (s *AttemptService) GetState(ctx context.Context, studentID int, attemptID uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.getOwned(ctx, studentID, attemptID)
	if err != nil {
		return nil, err
	}

	assignment, err := s.catalog.Get(ctx, attempt.AssignmentID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &model.AttemptState{
		Attempt:                  attempt,
		RemainingSeconds:         s.remainingSeconds(assignment, attempt),
		AutosaveIntervalSeconds:  int(s.cfg.AutosaveInterval.Seconds()),
		MaxCheckpointIntervalSec: int(s.cfg.MaxCheckpointInterval.Seconds()),
	}, nil
}

// remainingSeconds computes working time left from server-accumulated
// elapsed seconds, never from anything the client reported directly.
func (s *AttemptService) remainingSeconds(assignment *model.Assignment, attempt *model.Attempt) float64 {
	if attempt.Status.Terminal() {
		return 0
	}

	remaining := float64(assignment.DurationMinutes*60 - attempt.ElapsedSeconds)

	// Without a late policy the due date is a hard wall, whichever comes first.
	if !assignment.LateSubmissionAllowed {
		untilDue := assignment.DueDate.Sub(s.now()).Seconds()
		if untilDue < remaining {
			remaining = untilDue
		}
	}

	if remaining < 0 {
		return 0
	}
	return remaining
}

// Results retrieves paginated attempts for an assignment (staff view).
func (s *AttemptService) Results(ctx context.Context, assignmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error) {
	attempts, total, err := s.store.ListByAssignment(ctx, assignmentID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return attempts, total, nil
}

// getOwned fetches an attempt and verifies ownership. A mismatched student
// gets ErrAttemptNotFound, not a forbidden error, so attempt IDs cannot be
// probed across accounts.
func (s *AttemptService) getOwned(ctx context.Context, studentID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.store.Get(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}
