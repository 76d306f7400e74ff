package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/classwork-backend/internal/model"
)

// DisclosureService gates the reveal of correct answers. The decision itself
// is a pure function of the stored configuration, the clock, and whether the
// student has submitted; everything else here is fetching those inputs.
type DisclosureService struct {
	assignments AssignmentStore
	classrooms  ClassroomStore
	submissions SubmissionStore
	questions   AnswerKeyStore

	now func() time.Time
}

// NewDisclosureService creates a new DisclosureService.
func NewDisclosureService(
	assignments AssignmentStore,
	classrooms ClassroomStore,
	submissions SubmissionStore,
	questions AnswerKeyStore,
) *DisclosureService {
	return &DisclosureService{
		assignments: assignments,
		classrooms:  classrooms,
		submissions: submissions,
		questions:   questions,
		now:         time.Now,
	}
}

// DisclosureAllowed decides whether correct answers may be shown. Modes:
// never always denies; afterLock allows once the effective lock time has
// passed; afterSubmit allows as soon as the student has any submission.
func DisclosureAllowed(assignment *model.Assignment, now time.Time, hasSubmission bool) bool {
	if assignment.Type != model.AssignmentTypeQuiz {
		return false
	}
	switch assignment.AntiCheat.EffectiveShowCorrect() {
	case model.ShowCorrectAfterLock:
		lock := assignment.EffectiveLockTime()
		return lock != nil && now.After(*lock)
	case model.ShowCorrectAfterSubmit:
		return hasSubmission
	default:
		return false
	}
}

// RevealAnswers returns the correct option ids per question, in stable
// question order, or ErrPolicyDenied. Never scores, never other students'
// data.
func (s *DisclosureService) RevealAnswers(ctx context.Context, assignmentID uuid.UUID, studentID int) ([]model.AnswerKeyEntry, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if assignment.Type != model.AssignmentTypeQuiz {
		return nil, ErrForbidden
	}

	classroomID, err := s.classrooms.MemberClassroomID(ctx, studentID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if classroomID == nil {
		return nil, ErrForbidden
	}

	// Only the afterSubmit mode needs the submission lookup.
	hasSubmission := false
	if assignment.AntiCheat.EffectiveShowCorrect() == model.ShowCorrectAfterSubmit {
		hasSubmission, err = s.submissions.Exists(ctx, assignmentID, studentID)
		if err != nil {
			return nil, fmt.Errorf("check submissions: %w", err)
		}
	}

	if !DisclosureAllowed(assignment, s.now(), hasSubmission) {
		return nil, ErrPolicyDenied
	}

	key, err := s.questions.ListAnswerKey(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("read answer key: %w", err)
	}
	return key, nil
}
