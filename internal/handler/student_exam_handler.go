package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/classwork-backend/internal/middleware"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/response"
	"github.com/stemsi/classwork-backend/internal/service"
	"github.com/stemsi/classwork-backend/internal/validator"
)

// StudentExamHandler handles the student-facing attempt lifecycle endpoints.
type StudentExamHandler struct {
	attemptService    *service.AttemptService
	eventService      *service.EventService
	disclosureService *service.DisclosureService
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(
	attemptService *service.AttemptService,
	eventService *service.EventService,
	disclosureService *service.DisclosureService,
) *StudentExamHandler {
	return &StudentExamHandler{
		attemptService:    attemptService,
		eventService:      eventService,
		disclosureService: disclosureService,
	}
}

// StartAttempt godoc
// POST /api/v1/student/assignments/:assignment_id/attempt
// Opens a new attempt, or returns the already-open one (idempotent).
func (h *StudentExamHandler) StartAttempt(c *gin.Context) {
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

	attempt, err := h.attemptService.Start(c.Request.Context(), assignmentID, claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetAttemptState godoc
// GET /api/v1/student/assignments/:assignment_id/attempt/state
// Returns the open attempt and its remaining time. Covers page reloads.
func (h *StudentExamHandler) GetAttemptState(c *gin.Context) {
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

	state, err := h.attemptService.State(c.Request.Context(), assignmentID, claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// ReportEvent godoc
// POST /api/v1/student/assignments/:assignment_id/events
// Appends a proctoring signal to the durable event log.
func (h *StudentExamHandler) ReportEvent(c *gin.Context) {
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

	var req model.ReportEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	event, err := h.eventService.AppendStudentEvent(c.Request.Context(), assignmentID, claims.UserID, req)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"event": event})
}

// GetAnswerKey godoc
// GET /api/v1/student/assignments/:assignment_id/answer-key
// Returns the correct answers when the disclosure policy allows it.
func (h *StudentExamHandler) GetAnswerKey(c *gin.Context) {
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

	entries, err := h.disclosureService.RevealAnswers(c.Request.Context(), assignmentID, claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	if entries == nil {
		entries = []model.AnswerKeyEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"answer_key": entries})
}
