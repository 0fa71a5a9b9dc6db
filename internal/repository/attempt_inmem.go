package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
)

// InMemAttemptStore is a mutex-guarded AttemptStore used by tests and by the
// server's -inmem development mode. It mirrors the conditional-update
// semantics of the PostgreSQL implementation exactly: every mutation is
// guarded by the in_progress status check under a single lock.
type InMemAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt

	// now is swappable so tests can control timestamps.
	now func() time.Time
}

// NewInMemAttemptStore creates an empty in-memory store.
func NewInMemAttemptStore() *InMemAttemptStore {
	return &InMemAttemptStore{
		attempts: make(map[uuid.UUID]*model.Attempt),
		now:      time.Now,
	}
}

// SetClock replaces the store's time source. Test use only.
func (s *InMemAttemptStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemAttemptStore) activeLocked(studentID int, assignmentID uuid.UUID) *model.Attempt {
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.AssignmentID == assignmentID && a.Status == model.AttemptStatusInProgress {
			return a
		}
	}
	return nil
}

// Create inserts a new in-progress attempt, or returns the existing active
// one for the pair.
func (s *InMemAttemptStore) Create(ctx context.Context, attempt *model.Attempt) (bool, *model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.activeLocked(attempt.StudentID, attempt.AssignmentID); existing != nil {
		return false, existing.Clone(), nil
	}

	now := s.now()
	stored := &model.Attempt{
		ID:               uuid.New(),
		StudentID:        attempt.StudentID,
		AssignmentID:     attempt.AssignmentID,
		Status:           model.AttemptStatusInProgress,
		Answers:          make(map[uuid.UUID]model.Answer),
		StartedAt:        now,
		LastCheckpointAt: now,
	}
	s.attempts[stored.ID] = stored
	return true, stored.Clone(), nil
}

// Get retrieves an attempt by ID.
func (s *InMemAttemptStore) Get(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// GetActive retrieves the in-progress attempt for a (student, assignment) pair.
func (s *InMemAttemptStore) GetActive(ctx context.Context, studentID int, assignmentID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a := s.activeLocked(studentID, assignmentID); a != nil {
		return a.Clone(), nil
	}
	return nil, ErrNotFound
}

// ApplyCheckpoint merges the delta and advances time under the status guard,
// matching the SQL implementation's single conditional update.
func (s *InMemAttemptStore) ApplyCheckpoint(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.Answer, elapsedDeltaSeconds int, seq uint64, submit bool) (*model.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if a.Status != model.AttemptStatusInProgress {
		return a.Clone(), false, nil
	}

	for qid, ans := range delta {
		a.Answers[qid] = ans
	}
	if seq > a.CheckpointSeq {
		a.ElapsedSeconds += elapsedDeltaSeconds
		a.CheckpointSeq = seq
	}
	now := s.now()
	a.LastCheckpointAt = now
	if submit {
		a.Status = model.AttemptStatusSubmitted
		a.SubmittedAt = &now
	}
	return a.Clone(), true, nil
}

// MarkAbandoned transitions an in-progress attempt to abandoned.
func (s *InMemAttemptStore) MarkAbandoned(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status == model.AttemptStatusInProgress {
		a.Status = model.AttemptStatusAbandoned
		a.LastCheckpointAt = s.now()
	}
	return a.Clone(), nil
}

// MarkGraded records a score on a submitted attempt.
func (s *InMemAttemptStore) MarkGraded(ctx context.Context, attemptID uuid.UUID, score float64) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status == model.AttemptStatusSubmitted {
		a.Status = model.AttemptStatusGraded
		a.Score = &score
	}
	return a.Clone(), nil
}

// ListByAssignment retrieves attempts for an assignment, newest first.
func (s *InMemAttemptStore) ListByAssignment(ctx context.Context, assignmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*model.Attempt
	for _, a := range s.attempts {
		if a.AssignmentID == assignmentID {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * perPage
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]model.Attempt, 0, end-start)
	for _, a := range matched[start:end] {
		out = append(out, *a.Clone())
	}
	return out, total, nil
}
