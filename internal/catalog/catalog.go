// Package catalog provides read-only access to assignment definitions.
// The attempt core never writes through this package; authoring lives in a
// separate system and this client only consumes its published snapshots.
package catalog

import (
	"context"
	"errors"

	"github.com/classforge/classforge-backend/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when the catalog has no such assignment.
var ErrNotFound = errors.New("assignment not found")

// Catalog is the read-only assignment source the session authority consumes.
type Catalog interface {
	Get(ctx context.Context, assignmentID uuid.UUID) (*model.Assignment, error)
}

// Static is a fixed in-memory catalog, used by tests and by the server's
// -inmem development mode.
type Static struct {
	assignments map[uuid.UUID]*model.Assignment
}

// NewStatic creates a Static catalog from the given assignments.
func NewStatic(assignments ...*model.Assignment) *Static {
	m := make(map[uuid.UUID]*model.Assignment, len(assignments))
	for _, a := range assignments {
		m[a.ID] = a
	}
	return &Static{assignments: m}
}

// Get returns the assignment or ErrNotFound.
func (s *Static) Get(ctx context.Context, assignmentID uuid.UUID) (*model.Assignment, error) {
	a, ok := s.assignments[assignmentID]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}
