package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened during or around an attempt. The set is
// closed: student clients may only report the STUDENT_* codes below, which
// keeps downstream aggregation well-defined.
type EventType string

// Student-reported proctoring signals.
const (
	EventTabBlur        EventType = "STUDENT_TAB_BLUR"
	EventTabFocus       EventType = "STUDENT_TAB_FOCUS"
	EventFullscreenExit EventType = "STUDENT_FULLSCREEN_EXIT"
	EventFullscreenBack EventType = "STUDENT_FULLSCREEN_ENTER"
	EventCopyDetected   EventType = "STUDENT_COPY_DETECTED"
	EventPasteDetected  EventType = "STUDENT_PASTE_DETECTED"
	EventDevtoolsOpen   EventType = "STUDENT_DEVTOOLS_OPEN"
	EventNetworkOffline EventType = "STUDENT_NETWORK_OFFLINE"
)

// Teacher intervention events, written by the session state machine.
const (
	EventTeacherExtendTime EventType = "TEACHER_EXTEND_TIME"
	EventTeacherPause      EventType = "TEACHER_PAUSE_SESSION"
	EventTeacherResume     EventType = "TEACHER_RESUME_SESSION"
	EventTeacherTerminate  EventType = "TEACHER_TERMINATE_SESSION"
)

// EventSeverity classifies student signals for the monitoring heuristics.
type EventSeverity string

const (
	SeverityLow    EventSeverity = "low"
	SeverityMedium EventSeverity = "medium"
	SeverityHigh   EventSeverity = "high"
	SeverityNone   EventSeverity = "none" // teacher interventions carry no suspicion weight
)

var studentEventSeverity = map[EventType]EventSeverity{
	EventTabBlur:        SeverityMedium,
	EventTabFocus:       SeverityLow,
	EventFullscreenExit: SeverityHigh,
	EventFullscreenBack: SeverityLow,
	EventCopyDetected:   SeverityMedium,
	EventPasteDetected:  SeverityHigh,
	EventDevtoolsOpen:   SeverityHigh,
	EventNetworkOffline: SeverityLow,
}

// ValidStudentEvent reports whether t is a code student clients may report.
func ValidStudentEvent(t EventType) bool {
	_, ok := studentEventSeverity[t]
	return ok
}

// Severity returns the suspicion weight of an event type.
func (t EventType) Severity() EventSeverity {
	if s, ok := studentEventSeverity[t]; ok {
		return s
	}
	return SeverityNone
}

// ExamEvent is an immutable record in the append-only exam event log.
// Attempt is nil when a student signal arrives without an attempt number.
type ExamEvent struct {
	ID           uuid.UUID       `json:"id"`
	AssignmentID uuid.UUID       `json:"assignment_id"`
	StudentID    int             `json:"student_id"`
	Attempt      *int            `json:"attempt,omitempty"`
	EventType    EventType       `json:"event_type"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ReportEventRequest is the payload for a student-reported proctoring signal.
type ReportEventRequest struct {
	EventType EventType       `json:"event_type" binding:"required,max=40"`
	Attempt   *int            `json:"attempt" binding:"omitempty,min=1"`
	Metadata  json.RawMessage `json:"metadata" binding:"omitempty"`
}

// EventFilter narrows a teacher's event-log read.
type EventFilter struct {
	StudentID *int
	Attempt   *int
	From      *time.Time
	To        *time.Time
	Limit     int
}
