package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/model"
)

var testClock = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func quizAssignment(teacherID int) *model.Assignment {
	return &model.Assignment{
		ID:               uuid.New(),
		TeacherID:        teacherID,
		Title:            "Ulangan Harian",
		Type:             model.AssignmentTypeQuiz,
		OpenAt:           timePtr(testClock.Add(-time.Hour)),
		DueDate:          timePtr(testClock.Add(time.Hour)),
		TimeLimitMinutes: intPtr(45),
		MaxAttempts:      intPtr(2),
		AntiCheat: model.AntiCheatConfig{
			ShowCorrect:       model.ShowCorrectAfterSubmit,
			EnforceFullscreen: true,
		},
	}
}

type attemptFixture struct {
	svc         *AttemptService
	assignment  *model.Assignment
	attempts    *fakeAttemptStore
	submissions *fakeSubmissionStore
	cache       *fakeAttemptCache
}

func newAttemptFixture(t *testing.T, assignment *model.Assignment, studentID int) *attemptFixture {
	t.Helper()
	assignments := newFakeAssignmentStore(assignment)
	classrooms := newFakeClassroomStore()
	classrooms.enroll(studentID, assignment.ID)
	attempts := &fakeAttemptStore{createdAt: testClock}
	submissions := &fakeSubmissionStore{}
	cache := newFakeAttemptCache()

	svc := NewAttemptService(assignments, classrooms, attempts, submissions, cache, zerolog.Nop())
	svc.now = func() time.Time { return testClock }
	svc.newSeed = func() (int64, error) { return 424242, nil }

	return &attemptFixture{
		svc:         svc,
		assignment:  assignment,
		attempts:    attempts,
		submissions: submissions,
		cache:       cache,
	}
}

func TestStartCreatesFirstAttempt(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	attempt, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if attempt.AttemptNumber != 1 {
		t.Errorf("attempt number = %d, want 1", attempt.AttemptNumber)
	}
	if attempt.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", attempt.Status)
	}
	if attempt.ShuffleSeed != 424242 {
		t.Errorf("shuffle seed = %d, want the injected seed", attempt.ShuffleSeed)
	}
	if attempt.TimeLimitMinutes == nil || *attempt.TimeLimitMinutes != 45 {
		t.Errorf("time limit snapshot = %v, want 45", attempt.TimeLimitMinutes)
	}
	if !attempt.AntiCheat.EnforceFullscreen {
		t.Error("anti-cheat config was not snapshotted onto the attempt")
	}

	deadline, ok := fx.cache.deadlines[membershipKey{11, assignment.ID}]
	if !ok {
		t.Fatal("deadline was not cached")
	}
	if want := testClock.Add(45 * time.Minute); !deadline.Equal(want) {
		t.Errorf("cached deadline = %v, want %v", deadline, want)
	}
}

func TestStartIsIdempotentWhileOpen(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	first, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if second.ID != first.ID || second.AttemptNumber != first.AttemptNumber {
		t.Errorf("second Start returned a different attempt: %v vs %v", second.ID, first.ID)
	}
	if second.ShuffleSeed != first.ShuffleSeed {
		t.Error("shuffle seed changed across idempotent Start calls")
	}
	if len(fx.attempts.attempts) != 1 {
		t.Errorf("stored attempts = %d, want 1", len(fx.attempts.attempts))
	}
}

func TestStartReturnsPausedAttempt(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	first, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	endedAt := testClock
	if _, err := fx.attempts.SetStatus(context.Background(), first.ID, model.AttemptStatusInProgress, model.AttemptStatusPaused, &endedAt); err != nil {
		t.Fatalf("pause attempt: %v", err)
	}

	// A paused attempt still occupies the open slot: no new number.
	got, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("Start while paused: %v", err)
	}
	if got.ID != first.ID {
		t.Error("Start created a new attempt instead of returning the paused one")
	}
	if got.Status != model.AttemptStatusPaused {
		t.Errorf("status = %s, want PAUSED_BY_TEACHER", got.Status)
	}
}

func TestStartWindow(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *model.Assignment)
		wantErr error
	}{
		{
			name:    "before openAt",
			mutate:  func(a *model.Assignment) { a.OpenAt = timePtr(testClock.Add(time.Minute)) },
			wantErr: ErrWindowNotOpen,
		},
		{
			name:    "after dueDate without lockAt",
			mutate:  func(a *model.Assignment) { a.DueDate = timePtr(testClock.Add(-time.Minute)) },
			wantErr: ErrWindowClosed,
		},
		{
			name: "lockAt takes precedence over a later dueDate",
			mutate: func(a *model.Assignment) {
				a.LockAt = timePtr(testClock.Add(-time.Minute))
				a.DueDate = timePtr(testClock.Add(time.Hour))
			},
			wantErr: ErrWindowClosed,
		},
		{
			name: "no window bounds at all",
			mutate: func(a *model.Assignment) {
				a.OpenAt = nil
				a.LockAt = nil
				a.DueDate = nil
			},
			wantErr: nil,
		},
		{
			name:    "exactly at lock time is closed",
			mutate:  func(a *model.Assignment) { a.LockAt = timePtr(testClock) },
			wantErr: ErrWindowClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignment := quizAssignment(7)
			tt.mutate(assignment)
			fx := newAttemptFixture(t, assignment, 11)

			_, err := fx.svc.Start(context.Background(), assignment.ID, 11)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Start error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartReconcilesLegacySubmissionCounter(t *testing.T) {
	assignment := quizAssignment(7)
	assignment.MaxAttempts = intPtr(5)
	fx := newAttemptFixture(t, assignment, 11)

	// The legacy grading table has already handed out attempt numbers 1-3;
	// the registry only knows about 1.
	fx.submissions.maxAttempt = 3
	fx.attempts.attempts = []*model.Attempt{{
		ID:            uuid.New(),
		AssignmentID:  assignment.ID,
		StudentID:     11,
		AttemptNumber: 1,
		Status:        model.AttemptStatusCompleted,
		StartedAt:     testClock.Add(-2 * time.Hour),
	}}

	attempt, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.AttemptNumber != 4 {
		t.Errorf("attempt number = %d, want 4 (max of both counters + 1)", attempt.AttemptNumber)
	}
}

func TestStartQuota(t *testing.T) {
	assignment := quizAssignment(7)
	assignment.MaxAttempts = intPtr(2)
	fx := newAttemptFixture(t, assignment, 11)
	fx.submissions.maxAttempt = 2

	_, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Start error = %v, want ErrQuotaExceeded", err)
	}
}

func TestStartDefaultsMaxAttemptsToOne(t *testing.T) {
	assignment := quizAssignment(7)
	assignment.MaxAttempts = nil
	fx := newAttemptFixture(t, assignment, 11)
	fx.submissions.maxAttempt = 1

	_, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Start error = %v, want ErrQuotaExceeded with nil maxAttempts", err)
	}
}

func TestStartRejectsNonQuiz(t *testing.T) {
	assignment := quizAssignment(7)
	assignment.Type = model.AssignmentTypeEssay
	fx := newAttemptFixture(t, assignment, 11)

	_, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Start error = %v, want ErrForbidden", err)
	}
}

func TestStartRequiresMembership(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	// Student 99 is not enrolled in any classroom of the assignment.
	_, err := fx.svc.Start(context.Background(), assignment.ID, 99)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Start error = %v, want ErrForbidden", err)
	}
}

func TestStartUnknownAssignment(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	_, err := fx.svc.Start(context.Background(), uuid.New(), 11)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Start error = %v, want ErrNotFound", err)
	}
}

func TestStartLosesCreateRace(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	// Between the open-attempt check and the insert, a concurrent Start
	// wins the partial unique index.
	winner := &model.Attempt{
		ID:            uuid.New(),
		AssignmentID:  assignment.ID,
		StudentID:     11,
		AttemptNumber: 1,
		ShuffleSeed:   999,
		Status:        model.AttemptStatusInProgress,
		StartedAt:     testClock,
	}
	fx.attempts.onCreate = func() {
		fx.attempts.onCreate = nil
		fx.attempts.attempts = append(fx.attempts.attempts, winner)
	}

	attempt, err := fx.svc.Start(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.ID != winner.ID || attempt.ShuffleSeed != 999 {
		t.Error("loser did not receive the winner's attempt")
	}
	if len(fx.attempts.attempts) != 1 {
		t.Errorf("stored attempts = %d, want 1", len(fx.attempts.attempts))
	}
}

func TestStateUsesCachedDeadline(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	if _, err := fx.svc.Start(context.Background(), assignment.ID, 11); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Simulate a teacher extension that only reached the cache.
	fx.cache.deadlines[membershipKey{11, assignment.ID}] = testClock.Add(60 * time.Minute)

	state, err := fx.svc.State(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.RemainingSeconds == nil {
		t.Fatal("remaining seconds missing for a timed attempt")
	}
	if got, want := *state.RemainingSeconds, (60 * time.Minute).Seconds(); got != want {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}

func TestStateFallsBackAndSelfHeals(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	if _, err := fx.svc.Start(context.Background(), assignment.ID, 11); err != nil {
		t.Fatalf("Start: %v", err)
	}
	delete(fx.cache.deadlines, membershipKey{11, assignment.ID})

	state, err := fx.svc.State(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got, want := *state.RemainingSeconds, (45 * time.Minute).Seconds(); got != want {
		t.Errorf("remaining = %v, want %v (recomputed from the durable row)", got, want)
	}
	if _, ok := fx.cache.deadlines[membershipKey{11, assignment.ID}]; !ok {
		t.Error("fallback did not self-heal the cache")
	}
}

func TestStateClampsExpiredRemaining(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	if _, err := fx.svc.Start(context.Background(), assignment.ID, 11); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fx.svc.now = func() time.Time { return testClock.Add(2 * time.Hour) }

	state, err := fx.svc.State(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if *state.RemainingSeconds != 0 {
		t.Errorf("remaining = %v, want 0 after expiry", *state.RemainingSeconds)
	}
}

func TestStateUntimedAttempt(t *testing.T) {
	assignment := quizAssignment(7)
	assignment.TimeLimitMinutes = nil
	fx := newAttemptFixture(t, assignment, 11)

	if _, err := fx.svc.Start(context.Background(), assignment.ID, 11); err != nil {
		t.Fatalf("Start: %v", err)
	}

	state, err := fx.svc.State(context.Background(), assignment.ID, 11)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.RemainingSeconds != nil {
		t.Errorf("remaining = %v, want nil for an untimed attempt", *state.RemainingSeconds)
	}
}

func TestStateNoOpenAttempt(t *testing.T) {
	assignment := quizAssignment(7)
	fx := newAttemptFixture(t, assignment, 11)

	_, err := fx.svc.State(context.Background(), assignment.ID, 11)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("State error = %v, want ErrNotFound", err)
	}
}
