package model

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentType enumerates the kinds of classwork an assignment can carry.
// Only QUIZ assignments participate in the attempt lifecycle.
type AssignmentType string

const (
	AssignmentTypeQuiz  AssignmentType = "QUIZ"
	AssignmentTypeEssay AssignmentType = "ESSAY"
	AssignmentTypeFile  AssignmentType = "FILE"
)

// ShowCorrectMode controls when correct answers may be disclosed to students.
type ShowCorrectMode string

const (
	ShowCorrectNever       ShowCorrectMode = "never"
	ShowCorrectAfterSubmit ShowCorrectMode = "afterSubmit"
	ShowCorrectAfterLock   ShowCorrectMode = "afterLock"
)

// AntiCheatConfig holds assignment-level proctoring and disclosure settings.
// It is snapshotted into every attempt at creation, so edits made while a
// student is mid-attempt never change the rules of a running attempt.
type AntiCheatConfig struct {
	ShowCorrect       ShowCorrectMode `json:"show_correct"`
	EnforceFullscreen bool            `json:"enforce_fullscreen"`
	BlockCopyPaste    bool            `json:"block_copy_paste"`
}

// EffectiveShowCorrect returns the disclosure mode with the default applied.
func (c AntiCheatConfig) EffectiveShowCorrect() ShowCorrectMode {
	switch c.ShowCorrect {
	case ShowCorrectAfterSubmit, ShowCorrectAfterLock:
		return c.ShowCorrect
	default:
		return ShowCorrectNever
	}
}

// Assignment is the read-only configuration this subsystem consumes.
// CRUD lives elsewhere in the product.
type Assignment struct {
	ID               uuid.UUID       `json:"id"`
	TeacherID        int             `json:"teacher_id"`
	Title            string          `json:"title"`
	Type             AssignmentType  `json:"type"`
	OpenAt           *time.Time      `json:"open_at,omitempty"`
	LockAt           *time.Time      `json:"lock_at,omitempty"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	TimeLimitMinutes *int            `json:"time_limit_minutes,omitempty"`
	MaxAttempts      *int            `json:"max_attempts,omitempty"`
	AntiCheat        AntiCheatConfig `json:"anti_cheat"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// EffectiveLockTime returns lockAt if set, otherwise dueDate. A nil result
// means the attempt window never closes.
func (a *Assignment) EffectiveLockTime() *time.Time {
	if a.LockAt != nil {
		return a.LockAt
	}
	return a.DueDate
}

// EffectiveMaxAttempts returns maxAttempts with the default of 1 applied.
func (a *Assignment) EffectiveMaxAttempts() int {
	if a.MaxAttempts == nil || *a.MaxAttempts < 1 {
		return 1
	}
	return *a.MaxAttempts
}
