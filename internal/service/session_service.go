package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
)

// SessionService is the session state machine: it applies teacher overrides
// to a live attempt. Every successful transition writes exactly one exam
// event; a transition that loses a race against a concurrent writer still
// leaves its intent in the event log, because the log is the durable record
// of what was requested.
type SessionService struct {
	assignments AssignmentStore
	attempts    AttemptStore
	events      EventStore
	cache       AttemptCache
	log         zerolog.Logger

	now func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	assignments AssignmentStore,
	attempts AttemptStore,
	events EventStore,
	cache AttemptCache,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		assignments: assignments,
		attempts:    attempts,
		events:      events,
		cache:       cache,
		log:         log.With().Str("component", "session_service").Logger(),
		now:         time.Now,
	}
}

var overrideEventTypes = map[model.OverrideAction]model.EventType{
	model.OverrideExtendTime: model.EventTeacherExtendTime,
	model.OverridePause:      model.EventTeacherPause,
	model.OverrideResume:     model.EventTeacherResume,
	model.OverrideTerminate:  model.EventTeacherTerminate,
}

// overrideEventMetadata is the payload recorded with every intervention.
type overrideEventMetadata struct {
	TeacherID int                  `json:"teacher_id"`
	Action    model.OverrideAction `json:"action"`
	Minutes   *int                 `json:"minutes,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	Outcome   string               `json:"outcome"`
	Observed  model.AttemptStatus  `json:"observed_status"`
	Attempt   *model.Attempt       `json:"attempt,omitempty"`
}

// Override resolves the target attempt, validates the transition, and
// applies it with a status-predicated update. Terminal states accept
// nothing; a retried TERMINATE fails instead of appearing to succeed.
func (s *SessionService) Override(ctx context.Context, assignmentID uuid.UUID, teacherID, studentID int, req model.OverrideAttemptRequest) (*model.Attempt, error) {
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

	target, err := s.resolveTarget(ctx, assignmentID, studentID, req.AttemptNumber)
	if err != nil {
		return nil, err
	}

	if !target.Status.Open() {
		return nil, ErrInvalidAction
	}

	updated, err := s.apply(ctx, target, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// CAS miss: a concurrent writer (another teacher call or the
			// student's submission finalization) changed the row first.
			// Record the requested intervention anyway, then reject.
			s.recordEvent(ctx, target, teacherID, req, "lost_race", nil)
			return nil, ErrInvalidAction
		}
		return nil, err
	}

	s.recordEvent(ctx, updated, teacherID, req, "applied", updated)
	s.propagate(ctx, updated, req)
	return updated, nil
}

// resolveTarget picks the attempt the override addresses: an exact number
// when given, otherwise the most recently started attempt for the pair.
func (s *SessionService) resolveTarget(ctx context.Context, assignmentID uuid.UUID, studentID int, attemptNumber *int) (*model.Attempt, error) {
	var (
		target *model.Attempt
		err    error
	)
	if attemptNumber != nil {
		target, err = s.attempts.GetByNumber(ctx, assignmentID, studentID, *attemptNumber)
	} else {
		target, err = s.attempts.GetLatest(ctx, assignmentID, studentID)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve override target: %w", err)
	}
	return target, nil
}

func (s *SessionService) apply(ctx context.Context, target *model.Attempt, req model.OverrideAttemptRequest) (*model.Attempt, error) {
	switch req.Action {
	case model.OverrideExtendTime:
		if req.Minutes == nil || *req.Minutes <= 0 {
			return nil, ErrInvalidAction
		}
		return s.attempts.ExtendTime(ctx, target.ID, target.Status, *req.Minutes)

	case model.OverridePause:
		if target.Status != model.AttemptStatusInProgress {
			return nil, ErrInvalidAction
		}
		endedAt := s.now()
		return s.attempts.SetStatus(ctx, target.ID, target.Status, model.AttemptStatusPaused, &endedAt)

	case model.OverrideResume:
		if target.Status != model.AttemptStatusPaused {
			return nil, ErrInvalidAction
		}
		// Running is governed by status alone, so resuming clears the
		// pause timestamp instead of leaving a live attempt that looks
		// finished.
		return s.attempts.SetStatus(ctx, target.ID, target.Status, model.AttemptStatusInProgress, nil)

	case model.OverrideTerminate:
		endedAt := s.now()
		return s.attempts.SetStatus(ctx, target.ID, target.Status, model.AttemptStatusTerminated, &endedAt)

	default:
		return nil, ErrInvalidAction
	}
}

// recordEvent appends the intervention to the exam event log. Failures are
// logged and swallowed: the event is a side effect, never the reason a
// completed transition reports an error.
func (s *SessionService) recordEvent(ctx context.Context, target *model.Attempt, teacherID int, req model.OverrideAttemptRequest, outcome string, snapshot *model.Attempt) {
	metadata, err := json.Marshal(overrideEventMetadata{
		TeacherID: teacherID,
		Action:    req.Action,
		Minutes:   req.Minutes,
		Reason:    req.Reason,
		Outcome:   outcome,
		Observed:  target.Status,
		Attempt:   snapshot,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode override event metadata")
		return
	}

	attemptNumber := target.AttemptNumber
	event := &model.ExamEvent{
		AssignmentID: target.AssignmentID,
		StudentID:    target.StudentID,
		Attempt:      &attemptNumber,
		EventType:    overrideEventTypes[req.Action],
		Metadata:     metadata,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		s.log.Error().Err(err).
			Str("assignment_id", target.AssignmentID.String()).
			Int("student_id", target.StudentID).
			Str("action", string(req.Action)).
			Msg("failed to record override event")
	}
}

// propagate pushes the intervention to the student's live control channel
// and keeps the cached deadline in line with the new snapshot. Best-effort.
func (s *SessionService) propagate(ctx context.Context, updated *model.Attempt, req model.OverrideAttemptRequest) {
	msg := repository.ControlMessage{
		Action:        string(req.Action),
		AttemptNumber: updated.AttemptNumber,
		Status:        string(updated.Status),
		Reason:        req.Reason,
		At:            s.now().Unix(),
	}
	if req.Minutes != nil {
		msg.Minutes = *req.Minutes
	}
	if err := s.cache.PublishControl(ctx, updated.AssignmentID, updated.StudentID, msg); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish control message")
	}

	switch req.Action {
	case model.OverrideExtendTime:
		if updated.TimeLimitMinutes != nil {
			deadline := updated.StartedAt.Add(time.Duration(*updated.TimeLimitMinutes) * time.Minute)
			if err := s.cache.SetAttemptDeadline(ctx, updated.AssignmentID, updated.StudentID, deadline); err != nil {
				s.log.Warn().Err(err).Msg("failed to refresh cached deadline")
			}
		}
	case model.OverrideTerminate:
		if err := s.cache.ClearAttemptDeadline(ctx, updated.AssignmentID, updated.StudentID); err != nil {
			s.log.Warn().Err(err).Msg("failed to clear cached deadline")
		}
	}
}
