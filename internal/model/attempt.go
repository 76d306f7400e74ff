package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates quiz attempt states. IN_PROGRESS and
// PAUSED_BY_TEACHER are open states; the rest are terminal.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusPaused     AttemptStatus = "PAUSED_BY_TEACHER"
	AttemptStatusTerminated AttemptStatus = "TERMINATED_BY_TEACHER"
	// AttemptStatusCompleted is set by submission finalization, which lives
	// outside this subsystem. It is terminal here.
	AttemptStatusCompleted AttemptStatus = "COMPLETED"
)

// Open reports whether the status still admits teacher interventions.
func (s AttemptStatus) Open() bool {
	return s == AttemptStatusInProgress || s == AttemptStatusPaused
}

// Attempt is one instance of a student taking a timed quiz assignment.
// ShuffleSeed and AntiCheat are fixed at creation; TimeLimitMinutes is a
// snapshot that only EXTEND_TIME may grow.
type Attempt struct {
	ID               uuid.UUID       `json:"id"`
	AssignmentID     uuid.UUID       `json:"assignment_id"`
	StudentID        int             `json:"student_id"`
	AttemptNumber    int             `json:"attempt_number"`
	ShuffleSeed      int64           `json:"shuffle_seed"`
	Status           AttemptStatus   `json:"status"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          *time.Time      `json:"ended_at,omitempty"`
	TimeLimitMinutes *int            `json:"time_limit_minutes,omitempty"`
	AntiCheat        AntiCheatConfig `json:"anti_cheat"`
}

// OverrideAction enumerates teacher interventions on a live attempt.
type OverrideAction string

const (
	OverrideExtendTime OverrideAction = "EXTEND_TIME"
	OverridePause      OverrideAction = "PAUSE"
	OverrideResume     OverrideAction = "RESUME"
	OverrideTerminate  OverrideAction = "TERMINATE"
)

// OverrideAttemptRequest is the payload for a teacher session override.
type OverrideAttemptRequest struct {
	Action        OverrideAction `json:"action" binding:"required,oneof=EXTEND_TIME PAUSE RESUME TERMINATE"`
	AttemptNumber *int           `json:"attempt_number" binding:"omitempty,min=1"`
	Minutes       *int           `json:"minutes" binding:"omitempty"`
	Reason        string         `json:"reason" binding:"omitempty,max=500"`
}

// AttemptState is the runtime view a student client polls while taking a
// quiz: the attempt snapshot plus the remaining seconds, if a limit applies.
type AttemptState struct {
	Attempt          Attempt  `json:"attempt"`
	RemainingSeconds *float64 `json:"remaining_seconds,omitempty"`
}
