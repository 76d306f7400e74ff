package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
)

// MaxEventMetadataBytes caps the opaque payload of a student signal.
const MaxEventMetadataBytes = 4096

// EventService is the exam event log boundary. Student signals are inserted
// durably; the suspicion recalculation that feeds the monitoring dashboard
// is queued as a best-effort side effect.
type EventService struct {
	assignments AssignmentStore
	classrooms  ClassroomStore
	events      EventStore
	cache       AttemptCache
	log         zerolog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(
	assignments AssignmentStore,
	classrooms ClassroomStore,
	events EventStore,
	cache AttemptCache,
	log zerolog.Logger,
) *EventService {
	return &EventService{
		assignments: assignments,
		classrooms:  classrooms,
		events:      events,
		cache:       cache,
		log:         log.With().Str("component", "event_service").Logger(),
	}
}

// AppendStudentEvent records one self-reported proctoring signal. Only codes
// from the closed student enum are accepted; attempt state is never touched.
func (s *EventService) AppendStudentEvent(ctx context.Context, assignmentID uuid.UUID, studentID int, req model.ReportEventRequest) (*model.ExamEvent, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}

	classroomID, err := s.classrooms.MemberClassroomID(ctx, studentID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if classroomID == nil {
		return nil, ErrForbidden
	}

	if !model.ValidStudentEvent(req.EventType) {
		return nil, ErrInvalidAction
	}
	if len(req.Metadata) > MaxEventMetadataBytes {
		return nil, ErrInvalidAction
	}

	event := &model.ExamEvent{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Attempt:      req.Attempt,
		EventType:    req.EventType,
		Metadata:     req.Metadata,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	// The durable row is the contract; a missed recalculation only delays
	// the dashboard flag until the next signal arrives.
	job := repository.SuspicionJob{
		AssignmentID: assignmentID.String(),
		StudentID:    studentID,
	}
	if req.Attempt != nil {
		job.Attempt = *req.Attempt
	}
	if err := s.cache.EnqueueSuspicion(ctx, job); err != nil {
		s.log.Warn().Err(err).
			Str("assignment_id", assignmentID.String()).
			Int("student_id", studentID).
			Msg("failed to enqueue suspicion recalculation")
	}

	return event, nil
}

// List reads the event log for the assignment's owner, newest first.
func (s *EventService) List(ctx context.Context, assignmentID uuid.UUID, teacherID int, filter model.EventFilter) ([]model.ExamEvent, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}

	owner, err := s.assignments.IsOwner(ctx, teacherID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("check ownership: %w", err)
	}
	if !owner {
		return nil, ErrForbidden
	}

	events, err := s.events.List(ctx, assignmentID, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
