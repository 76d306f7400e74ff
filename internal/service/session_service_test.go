package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/model"
)

type sessionFixture struct {
	svc        *SessionService
	assignment *model.Assignment
	attempts   *fakeAttemptStore
	events     *fakeEventStore
	cache      *fakeAttemptCache
}

func newSessionFixture(t *testing.T, attempts ...*model.Attempt) *sessionFixture {
	t.Helper()
	assignment := quizAssignment(7)
	store := &fakeAttemptStore{createdAt: testClock}
	for _, a := range attempts {
		a.AssignmentID = assignment.ID
		store.attempts = append(store.attempts, a)
	}
	events := &fakeEventStore{}
	cache := newFakeAttemptCache()

	svc := NewSessionService(newFakeAssignmentStore(assignment), store, events, cache, zerolog.Nop())
	svc.now = func() time.Time { return testClock }

	return &sessionFixture{
		svc:        svc,
		assignment: assignment,
		attempts:   store,
		events:     events,
		cache:      cache,
	}
}

func openAttempt(studentID, number int, status model.AttemptStatus) *model.Attempt {
	limit := 45
	return &model.Attempt{
		ID:               uuid.New(),
		StudentID:        studentID,
		AttemptNumber:    number,
		Status:           status,
		StartedAt:        testClock.Add(-10 * time.Minute),
		TimeLimitMinutes: &limit,
	}
}

func (fx *sessionFixture) lastEventMetadata(t *testing.T) overrideEventMetadata {
	t.Helper()
	if len(fx.events.events) == 0 {
		t.Fatal("no event recorded")
	}
	var meta overrideEventMetadata
	if err := json.Unmarshal(fx.events.events[len(fx.events.events)-1].Metadata, &meta); err != nil {
		t.Fatalf("decode event metadata: %v", err)
	}
	return meta
}

func TestOverridePause(t *testing.T) {
	fx := newSessionFixture(t, openAttempt(11, 1, model.AttemptStatusInProgress))

	updated, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverridePause, Reason: "ada gangguan teknis"})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}

	if updated.Status != model.AttemptStatusPaused {
		t.Errorf("status = %s, want PAUSED_BY_TEACHER", updated.Status)
	}
	if updated.EndedAt == nil || !updated.EndedAt.Equal(testClock) {
		t.Errorf("endedAt = %v, want the pause timestamp", updated.EndedAt)
	}

	if len(fx.events.events) != 1 {
		t.Fatalf("events recorded = %d, want 1", len(fx.events.events))
	}
	event := fx.events.events[0]
	if event.EventType != model.EventTeacherPause {
		t.Errorf("event type = %s, want TEACHER_PAUSE_SESSION", event.EventType)
	}
	meta := fx.lastEventMetadata(t)
	if meta.Outcome != "applied" || meta.TeacherID != 7 || meta.Reason != "ada gangguan teknis" {
		t.Errorf("event metadata = %+v", meta)
	}

	if len(fx.cache.published) != 1 {
		t.Fatalf("control messages = %d, want 1", len(fx.cache.published))
	}
	if fx.cache.published[0].Action != "PAUSE" {
		t.Errorf("published action = %s, want PAUSE", fx.cache.published[0].Action)
	}
}

func TestOverrideResumeClearsEndedAt(t *testing.T) {
	paused := openAttempt(11, 1, model.AttemptStatusPaused)
	endedAt := testClock.Add(-time.Minute)
	paused.EndedAt = &endedAt
	fx := newSessionFixture(t, paused)

	updated, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverrideResume})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}

	if updated.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", updated.Status)
	}
	if updated.EndedAt != nil {
		t.Errorf("endedAt = %v, want nil after resume", updated.EndedAt)
	}
}

func TestOverrideTransitionRules(t *testing.T) {
	tests := []struct {
		name   string
		status model.AttemptStatus
		action model.OverrideAction
	}{
		{"pause a paused attempt", model.AttemptStatusPaused, model.OverridePause},
		{"resume a running attempt", model.AttemptStatusInProgress, model.OverrideResume},
		{"terminate a terminated attempt", model.AttemptStatusTerminated, model.OverrideTerminate},
		{"resume a terminated attempt", model.AttemptStatusTerminated, model.OverrideResume},
		{"extend a completed attempt", model.AttemptStatusCompleted, model.OverrideExtendTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newSessionFixture(t, openAttempt(11, 1, tt.status))

			req := model.OverrideAttemptRequest{Action: tt.action}
			if tt.action == model.OverrideExtendTime {
				req.Minutes = intPtr(10)
			}
			_, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11, req)
			if !errors.Is(err, ErrInvalidAction) {
				t.Errorf("Override error = %v, want ErrInvalidAction", err)
			}
		})
	}
}

func TestOverrideExtendTime(t *testing.T) {
	fx := newSessionFixture(t, openAttempt(11, 1, model.AttemptStatusInProgress))

	updated, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverrideExtendTime, Minutes: intPtr(15)})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}

	if updated.TimeLimitMinutes == nil || *updated.TimeLimitMinutes != 60 {
		t.Errorf("time limit = %v, want 60", updated.TimeLimitMinutes)
	}
	if updated.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %s, extension must not touch status", updated.Status)
	}

	// The cached deadline follows the new snapshot: startedAt + 60m.
	deadline, ok := fx.cache.deadlines[membershipKey{11, fx.assignment.ID}]
	if !ok {
		t.Fatal("extension did not refresh the cached deadline")
	}
	if want := updated.StartedAt.Add(60 * time.Minute); !deadline.Equal(want) {
		t.Errorf("cached deadline = %v, want %v", deadline, want)
	}
}

func TestOverrideExtendTimeWhilePaused(t *testing.T) {
	fx := newSessionFixture(t, openAttempt(11, 1, model.AttemptStatusPaused))

	updated, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverrideExtendTime, Minutes: intPtr(5)})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if updated.Status != model.AttemptStatusPaused {
		t.Errorf("status = %s, extending a paused attempt must keep it paused", updated.Status)
	}
}

func TestOverrideExtendTimeValidatesMinutes(t *testing.T) {
	for _, minutes := range []*int{nil, intPtr(0), intPtr(-5)} {
		fx := newSessionFixture(t, openAttempt(11, 1, model.AttemptStatusInProgress))

		_, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
			model.OverrideAttemptRequest{Action: model.OverrideExtendTime, Minutes: minutes})
		if !errors.Is(err, ErrInvalidAction) {
			t.Errorf("minutes=%v: Override error = %v, want ErrInvalidAction", minutes, err)
		}
	}
}

func TestOverrideTerminate(t *testing.T) {
	fx := newSessionFixture(t, openAttempt(11, 1, model.AttemptStatusPaused))
	fx.cache.deadlines[membershipKey{11, fx.assignment.ID}] = testClock.Add(time.Hour)

	updated, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverrideTerminate, Reason: "kecurangan terdeteksi"})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}

	if updated.Status != model.AttemptStatusTerminated {
		t.Errorf("status = %s, want TERMINATED_BY_TEACHER", updated.Status)
	}
	if updated.EndedAt == nil {
		t.Error("termination must stamp endedAt")
	}
	if _, ok := fx.cache.deadlines[membershipKey{11, fx.assignment.ID}]; ok {
		t.Error("termination must clear the cached deadline")
	}
}

func TestOverrideCASMissStillWritesEvent(t *testing.T) {
	attempt := openAttempt(11, 1, model.AttemptStatusInProgress)
	fx := newSessionFixture(t, attempt)

	// Flip the stored row between resolveTarget and the update by giving
	// the fake a stale observed status.
	stored := fx.attempts.attempts[0]
	orig := fx.svc.attempts
	fx.svc.attempts = &racingAttemptStore{AttemptStore: orig, flip: func() {
		stored.Status = model.AttemptStatusCompleted
	}}

	_, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverrideTerminate, Reason: "menutup sesi"})
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("Override error = %v, want ErrInvalidAction", err)
	}

	// The losing write must still leave its intent in the log.
	if len(fx.events.events) != 1 {
		t.Fatalf("events recorded = %d, want 1", len(fx.events.events))
	}
	meta := fx.lastEventMetadata(t)
	if meta.Outcome != "lost_race" {
		t.Errorf("outcome = %q, want lost_race", meta.Outcome)
	}
	if meta.Action != model.OverrideTerminate || meta.Reason != "menutup sesi" {
		t.Errorf("event metadata = %+v", meta)
	}
	if len(fx.cache.published) != 0 {
		t.Error("a lost race must not publish a control message")
	}
}

func TestOverrideTargetsAttemptByNumber(t *testing.T) {
	older := openAttempt(11, 1, model.AttemptStatusCompleted)
	older.StartedAt = testClock.Add(-2 * time.Hour)
	current := openAttempt(11, 2, model.AttemptStatusInProgress)
	fx := newSessionFixture(t, older, current)

	// Latest attempt by default.
	updated, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverridePause})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if updated.AttemptNumber != 2 {
		t.Errorf("default target = attempt %d, want 2 (the latest)", updated.AttemptNumber)
	}

	// Addressing the completed attempt by number is rejected as terminal.
	_, err = fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverridePause, AttemptNumber: intPtr(1)})
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Override error = %v, want ErrInvalidAction for a terminal target", err)
	}
}

func TestOverrideAuthorization(t *testing.T) {
	fx := newSessionFixture(t, openAttempt(11, 1, model.AttemptStatusInProgress))

	// Teacher 8 does not own the assignment.
	_, err := fx.svc.Override(context.Background(), fx.assignment.ID, 8, 11,
		model.OverrideAttemptRequest{Action: model.OverridePause})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Override error = %v, want ErrForbidden", err)
	}

	_, err = fx.svc.Override(context.Background(), uuid.New(), 7, 11,
		model.OverrideAttemptRequest{Action: model.OverridePause})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Override error = %v, want ErrNotFound", err)
	}
}

func TestOverrideNoAttempts(t *testing.T) {
	fx := newSessionFixture(t)

	_, err := fx.svc.Override(context.Background(), fx.assignment.ID, 7, 11,
		model.OverrideAttemptRequest{Action: model.OverridePause})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Override error = %v, want ErrNotFound", err)
	}
}

// racingAttemptStore wraps an AttemptStore and mutates state between the
// target read and the update, like a concurrent writer would.
type racingAttemptStore struct {
	AttemptStore
	flip func()
}

func (s *racingAttemptStore) SetStatus(ctx context.Context, id uuid.UUID, observed, next model.AttemptStatus, endedAt *time.Time) (*model.Attempt, error) {
	if s.flip != nil {
		s.flip()
		s.flip = nil
	}
	return s.AttemptStore.SetStatus(ctx, id, observed, next, endedAt)
}
