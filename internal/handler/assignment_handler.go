package handler

import (
	"errors"
	"net/http"

	"github.com/classforge/classforge-backend/internal/catalog"
	"github.com/classforge/classforge-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AssignmentHandler exposes read-only assignment snapshots to students.
type AssignmentHandler struct {
	catalog catalog.Catalog
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(cat catalog.Catalog) *AssignmentHandler {
	return &AssignmentHandler{catalog: cat}
}

// Get godoc
// GET /api/v1/assignments/:assignment_id
// Returns the assignment's question set and timing parameters. The catalog
// never publishes correct answers, so the payload is safe for students.
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	assignment, err := h.catalog.Get(c.Request.Context(), assignmentID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrAssignmentNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}
