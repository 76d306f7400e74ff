package model

import (
	"time"

	"github.com/google/uuid"
)

// Classroom groups students. Assignments are assigned to one or more
// classrooms; membership gates the student-facing attempt operations.
type Classroom struct {
	ID        uuid.UUID `json:"id"`
	TeacherID int       `json:"teacher_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
