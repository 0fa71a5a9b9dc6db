package session

import (
	"context"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/service"
	"github.com/google/uuid"
)

// ServiceAuthority adapts an in-process AttemptService to the Authority
// interface, binding the student identity the runtime acts for.
type ServiceAuthority struct {
	svc       *service.AttemptService
	studentID int
}

// NewServiceAuthority creates an Authority over an in-process service.
func NewServiceAuthority(svc *service.AttemptService, studentID int) *ServiceAuthority {
	return &ServiceAuthority{svc: svc, studentID: studentID}
}

// Checkpoint forwards a non-final save to the session authority.
func (a *ServiceAuthority) Checkpoint(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, elapsedDeltaSeconds int, seq uint64) (*model.Attempt, error) {
	return a.svc.Checkpoint(ctx, a.studentID, attemptID, delta, elapsedDeltaSeconds, seq)
}

// Submit forwards the final save to the session authority.
func (a *ServiceAuthority) Submit(ctx context.Context, attemptID uuid.UUID, delta map[uuid.UUID]model.AnswerInput, elapsedDeltaSeconds int, seq uint64) (*model.Attempt, error) {
	return a.svc.Submit(ctx, a.studentID, attemptID, delta, elapsedDeltaSeconds, seq)
}
