package handler

import (
	"errors"
	"net/http"

	"github.com/classforge/classforge-backend/internal/middleware"
	"github.com/classforge/classforge-backend/internal/model"
	"github.com/classforge/classforge-backend/internal/response"
	"github.com/classforge/classforge-backend/internal/service"
	"github.com/classforge/classforge-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttemptHandler handles the student-facing attempt session endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// Start godoc
// POST /api/v1/attempts/start
// Creates a new attempt or returns the existing active one (idempotent resume).
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.Request.Context(), claims.UserID, req.AssignmentID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// Checkpoint godoc
// PUT /api/v1/attempts/:attempt_id/checkpoint
// Merges an answer delta and advances server-side elapsed time.
func (h *AttemptHandler) Checkpoint(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CheckpointRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	delta, ok := parseDelta(c, req.AnswersDelta)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Checkpoint(c.Request.Context(), claims.UserID, attemptID, delta, req.ClientElapsedDeltaSeconds, req.Sequence)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// Submit godoc
// POST /api/v1/attempts/:attempt_id/submit
// Applies the final delta and transitions to submitted. Safe to retry: a
// repeated call returns the terminal record unchanged.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	delta, ok := parseDelta(c, req.FinalAnswersDelta)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, attemptID, delta, req.ClientElapsedDeltaSeconds, req.Sequence)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetState godoc
// GET /api/v1/attempts/:attempt_id/state
// Reload recovery: returns the full attempt plus server-computed remaining
// time so the client can rebuild its draft, navigator, and countdown.
func (h *AttemptHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// parseDelta converts string-keyed request deltas to UUID keys. Responds
// with INVALID_ID and returns ok=false on a malformed key.
func parseDelta(c *gin.Context, raw map[string]model.AnswerInput) (map[uuid.UUID]model.AnswerInput, bool) {
	delta := make(map[uuid.UUID]model.AnswerInput, len(raw))
	for key, in := range raw {
		qid, err := uuid.Parse(key)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return nil, false
		}
		delta[qid] = in
	}
	return delta, true
}

// failAttemptError maps session-authority errors to API error codes.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAssignmentNotFound)
	case errors.Is(err, service.ErrAssignmentUnavailable):
		response.Fail(c, http.StatusConflict, response.ErrAssignmentUnavailable)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrInvalidQuestionReference):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidQuestionRef)
	case errors.Is(err, service.ErrStorageUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
