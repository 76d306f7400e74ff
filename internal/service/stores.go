package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
)

// The store interfaces name exactly what each service consumes from the
// persistence layer. The pgx-backed repository types satisfy them; tests
// swap in fakes. Misses surface as pgx.ErrNoRows, same as the concrete
// repositories.

// AssignmentStore reads assignment configuration and ownership.
type AssignmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	IsOwner(ctx context.Context, teacherID int, assignmentID uuid.UUID) (bool, error)
}

// ClassroomStore answers classroom membership questions.
type ClassroomStore interface {
	MemberClassroomID(ctx context.Context, studentID int, assignmentID uuid.UUID) (*uuid.UUID, error)
}

// AttemptStore persists attempts.
type AttemptStore interface {
	GetOpen(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error)
	GetByNumber(ctx context.Context, assignmentID uuid.UUID, studentID, attemptNumber int) (*model.Attempt, error)
	GetLatest(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error)
	MaxAttemptNumber(ctx context.Context, assignmentID uuid.UUID, studentID int) (int, error)
	Create(ctx context.Context, a *model.Attempt) error
	SetStatus(ctx context.Context, id uuid.UUID, observed, next model.AttemptStatus, endedAt *time.Time) (*model.Attempt, error)
	ExtendTime(ctx context.Context, id uuid.UUID, observed model.AttemptStatus, minutes int) (*model.Attempt, error)
}

// SubmissionStore reads the legacy submission counters.
type SubmissionStore interface {
	MaxAttempt(ctx context.Context, assignmentID uuid.UUID, studentID int) (int, error)
	Exists(ctx context.Context, assignmentID uuid.UUID, studentID int) (bool, error)
}

// EventStore appends to and reads the exam event log.
type EventStore interface {
	Insert(ctx context.Context, e *model.ExamEvent) error
	List(ctx context.Context, assignmentID uuid.UUID, filter model.EventFilter) ([]model.ExamEvent, error)
}

// AnswerKeyStore reads correct options for the disclosure path.
type AnswerKeyStore interface {
	ListAnswerKey(ctx context.Context, assignmentID uuid.UUID) ([]model.AnswerKeyEntry, error)
}

// AttemptCache is the best-effort Redis state beside the durable rows.
type AttemptCache interface {
	SetAttemptDeadline(ctx context.Context, assignmentID uuid.UUID, studentID int, deadline time.Time) error
	GetAttemptDeadline(ctx context.Context, assignmentID uuid.UUID, studentID int) (time.Time, error)
	ClearAttemptDeadline(ctx context.Context, assignmentID uuid.UUID, studentID int) error
	PublishControl(ctx context.Context, assignmentID uuid.UUID, studentID int, msg repository.ControlMessage) error
	EnqueueSuspicion(ctx context.Context, job repository.SuspicionJob) error
}

// MonitorStore aggregates the event log for the live monitoring read.
type MonitorStore interface {
	ListAttempts(ctx context.Context, assignmentID uuid.UUID) ([]repository.AttemptOverview, error)
	GetEventTypeCounts(ctx context.Context, assignmentID uuid.UUID) ([]repository.EventTypeCount, error)
	GetSuspicionFlag(ctx context.Context, assignmentID uuid.UUID, studentID, attemptNumber int) (string, error)
}
