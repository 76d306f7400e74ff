package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/classwork-backend/internal/middleware"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/response"
	"github.com/stemsi/classwork-backend/internal/service"
	"github.com/stemsi/classwork-backend/internal/validator"
)

// TeacherSessionHandler handles the teacher-facing session control endpoints.
type TeacherSessionHandler struct {
	sessionService *service.SessionService
	eventService   *service.EventService
}

// NewTeacherSessionHandler creates a new TeacherSessionHandler.
func NewTeacherSessionHandler(
	sessionService *service.SessionService,
	eventService *service.EventService,
) *TeacherSessionHandler {
	return &TeacherSessionHandler{
		sessionService: sessionService,
		eventService:   eventService,
	}
}

// OverrideAttempt godoc
// POST /api/v1/teacher/assignments/:assignment_id/students/:student_id/override
// Applies EXTEND_TIME, PAUSE, RESUME or TERMINATE to a student's attempt.
func (h *TeacherSessionHandler) OverrideAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil || studentID < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.OverrideAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.sessionService.Override(c.Request.Context(), assignmentID, claims.UserID, studentID, req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ListEvents godoc
// GET /api/v1/teacher/assignments/:assignment_id/events
// Reads the exam event log, newest first, with optional filters.
func (h *TeacherSessionHandler) ListEvents(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	filter, ok := parseEventFilter(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	events, err := h.eventService.List(c.Request.Context(), assignmentID, claims.UserID, filter)
	if err != nil {
		failDomain(c, err)
		return
	}

	if events == nil {
		events = []model.ExamEvent{}
	}

	response.Success(c, http.StatusOK, gin.H{"events": events})
}

func parseEventFilter(c *gin.Context) (model.EventFilter, bool) {
	var filter model.EventFilter

	if raw := c.Query("student_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			return filter, false
		}
		filter.StudentID = &id
	}
	if raw := c.Query("attempt"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, false
		}
		filter.Attempt = &n
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, false
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, false
		}
		filter.To = &t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, false
		}
		filter.Limit = n
	}

	return filter, true
}
