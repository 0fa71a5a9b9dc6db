package handler

import (
	"net/http"
	"strconv"

	"github.com/classforge/classforge-backend/internal/response"
	"github.com/classforge/classforge-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StaffHandler handles administrative attempt endpoints.
type StaffHandler struct {
	attemptService *service.AttemptService
	authService    *service.AuthService
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(attemptService *service.AttemptService, authService *service.AuthService) *StaffHandler {
	return &StaffHandler{
		attemptService: attemptService,
		authService:    authService,
	}
}

// AbandonAttempt godoc
// POST /api/v1/staff/attempts/:attempt_id/abandon
// Marks a stalled in-progress attempt as abandoned so the student's next
// start creates a fresh one. Recovery tool; not exposed to students.
func (h *StaffHandler) AbandonAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Abandon(c.Request.Context(), attemptID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ListAttempts godoc
// GET /api/v1/staff/assignments/:assignment_id/attempts?page=&per_page=
func (h *StaffHandler) ListAttempts(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	attempts, total, err := h.attemptService.Results(c.Request.Context(), assignmentID, page, perPage)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// ResetStudentSession godoc
// POST /api/v1/staff/students/:student_id/reset-session
// Clears a student's single-device login session, allowing a fresh login.
func (h *StaffHandler) ResetStudentSession(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
