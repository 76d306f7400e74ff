package model

import (
	"time"

	"github.com/google/uuid"
)

// Submission is the legacy hand-in record. Grading owns it; this subsystem
// only reads its attempt counter (to reconcile numbering with attempts) and
// its existence (for the afterSubmit disclosure mode).
type Submission struct {
	ID           uuid.UUID `json:"id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	StudentID    int       `json:"student_id"`
	Attempt      int       `json:"attempt"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
