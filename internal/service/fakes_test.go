package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
)

// In-memory store fakes mirroring the pgx repositories' contracts, down to
// pgx.ErrNoRows on misses and the CAS semantics of SetStatus/ExtendTime.

type fakeAssignmentStore struct {
	assignments map[uuid.UUID]*model.Assignment
}

func newFakeAssignmentStore(assignments ...*model.Assignment) *fakeAssignmentStore {
	s := &fakeAssignmentStore{assignments: make(map[uuid.UUID]*model.Assignment)}
	for _, a := range assignments {
		s.assignments[a.ID] = a
	}
	return s
}

func (s *fakeAssignmentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (s *fakeAssignmentStore) IsOwner(_ context.Context, teacherID int, assignmentID uuid.UUID) (bool, error) {
	a, ok := s.assignments[assignmentID]
	return ok && a.TeacherID == teacherID, nil
}

type membershipKey struct {
	studentID    int
	assignmentID uuid.UUID
}

type fakeClassroomStore struct {
	members map[membershipKey]uuid.UUID
}

func newFakeClassroomStore() *fakeClassroomStore {
	return &fakeClassroomStore{members: make(map[membershipKey]uuid.UUID)}
}

func (s *fakeClassroomStore) enroll(studentID int, assignmentID uuid.UUID) {
	s.members[membershipKey{studentID, assignmentID}] = uuid.New()
}

func (s *fakeClassroomStore) MemberClassroomID(_ context.Context, studentID int, assignmentID uuid.UUID) (*uuid.UUID, error) {
	id, ok := s.members[membershipKey{studentID, assignmentID}]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

type fakeAttemptStore struct {
	attempts []*model.Attempt

	createdAt time.Time // StartedAt stamped on Create
	onCreate  func()    // runs before the conflict check; simulates a racing writer
}

func (s *fakeAttemptStore) findOpen(assignmentID uuid.UUID, studentID int) *model.Attempt {
	for _, a := range s.attempts {
		if a.AssignmentID == assignmentID && a.StudentID == studentID && a.Status.Open() {
			return a
		}
	}
	return nil
}

func (s *fakeAttemptStore) GetOpen(_ context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	if a := s.findOpen(assignmentID, studentID); a != nil {
		copied := *a
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeAttemptStore) GetByNumber(_ context.Context, assignmentID uuid.UUID, studentID, attemptNumber int) (*model.Attempt, error) {
	for _, a := range s.attempts {
		if a.AssignmentID == assignmentID && a.StudentID == studentID && a.AttemptNumber == attemptNumber {
			copied := *a
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeAttemptStore) GetLatest(_ context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	var latest *model.Attempt
	for _, a := range s.attempts {
		if a.AssignmentID != assignmentID || a.StudentID != studentID {
			continue
		}
		if latest == nil || a.StartedAt.After(latest.StartedAt) ||
			(a.StartedAt.Equal(latest.StartedAt) && a.AttemptNumber > latest.AttemptNumber) {
			latest = a
		}
	}
	if latest == nil {
		return nil, pgx.ErrNoRows
	}
	copied := *latest
	return &copied, nil
}

func (s *fakeAttemptStore) MaxAttemptNumber(_ context.Context, assignmentID uuid.UUID, studentID int) (int, error) {
	max := 0
	for _, a := range s.attempts {
		if a.AssignmentID == assignmentID && a.StudentID == studentID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max, nil
}

func (s *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	if s.onCreate != nil {
		s.onCreate()
	}
	// The uq_attempts_open partial index: a second open attempt conflicts
	// and the insert returns no row.
	if s.findOpen(a.AssignmentID, a.StudentID) != nil {
		return pgx.ErrNoRows
	}
	a.ID = uuid.New()
	a.StartedAt = s.createdAt
	copied := *a
	s.attempts = append(s.attempts, &copied)
	return nil
}

func (s *fakeAttemptStore) SetStatus(_ context.Context, id uuid.UUID, observed, next model.AttemptStatus, endedAt *time.Time) (*model.Attempt, error) {
	for _, a := range s.attempts {
		if a.ID == id && a.Status == observed {
			a.Status = next
			a.EndedAt = endedAt
			copied := *a
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeAttemptStore) ExtendTime(_ context.Context, id uuid.UUID, observed model.AttemptStatus, minutes int) (*model.Attempt, error) {
	for _, a := range s.attempts {
		if a.ID == id && a.Status == observed {
			limit := minutes
			if a.TimeLimitMinutes != nil {
				limit += *a.TimeLimitMinutes
			}
			a.TimeLimitMinutes = &limit
			copied := *a
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeSubmissionStore struct {
	maxAttempt int
	exists     bool
}

func (s *fakeSubmissionStore) MaxAttempt(_ context.Context, _ uuid.UUID, _ int) (int, error) {
	return s.maxAttempt, nil
}

func (s *fakeSubmissionStore) Exists(_ context.Context, _ uuid.UUID, _ int) (bool, error) {
	return s.exists, nil
}

type fakeEventStore struct {
	events    []*model.ExamEvent
	insertErr error

	clock time.Time // each insert gets a strictly later created_at
}

func (s *fakeEventStore) Insert(_ context.Context, e *model.ExamEvent) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	if s.clock.IsZero() {
		s.clock = testClock
	}
	e.ID = uuid.New()
	e.CreatedAt = s.clock
	s.clock = s.clock.Add(time.Second)
	copied := *e
	s.events = append(s.events, &copied)
	return nil
}

// List mirrors the pgx repository's read contract: optional filters,
// newest first, default page size, hard cap.
func (s *fakeEventStore) List(_ context.Context, assignmentID uuid.UUID, filter model.EventFilter) ([]model.ExamEvent, error) {
	var out []model.ExamEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.AssignmentID != assignmentID {
			continue
		}
		if filter.StudentID != nil && e.StudentID != *filter.StudentID {
			continue
		}
		if filter.Attempt != nil && (e.Attempt == nil || *e.Attempt != *filter.Attempt) {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, *e)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = repository.DefaultEventPageSize
	}
	if limit > repository.MaxEventPageSize {
		limit = repository.MaxEventPageSize
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAttemptCache struct {
	deadlines map[membershipKey]time.Time
	published []repository.ControlMessage
	jobs      []repository.SuspicionJob

	getErr     error // forces the Postgres fallback path
	enqueueErr error
}

func newFakeAttemptCache() *fakeAttemptCache {
	return &fakeAttemptCache{deadlines: make(map[membershipKey]time.Time)}
}

func (c *fakeAttemptCache) SetAttemptDeadline(_ context.Context, assignmentID uuid.UUID, studentID int, deadline time.Time) error {
	c.deadlines[membershipKey{studentID, assignmentID}] = deadline
	return nil
}

func (c *fakeAttemptCache) GetAttemptDeadline(_ context.Context, assignmentID uuid.UUID, studentID int) (time.Time, error) {
	if c.getErr != nil {
		return time.Time{}, c.getErr
	}
	deadline, ok := c.deadlines[membershipKey{studentID, assignmentID}]
	if !ok {
		return time.Time{}, repository.ErrDeadlineMiss
	}
	return deadline, nil
}

func (c *fakeAttemptCache) ClearAttemptDeadline(_ context.Context, assignmentID uuid.UUID, studentID int) error {
	delete(c.deadlines, membershipKey{studentID, assignmentID})
	return nil
}

func (c *fakeAttemptCache) PublishControl(_ context.Context, _ uuid.UUID, _ int, msg repository.ControlMessage) error {
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeAttemptCache) EnqueueSuspicion(_ context.Context, job repository.SuspicionJob) error {
	if c.enqueueErr != nil {
		return c.enqueueErr
	}
	c.jobs = append(c.jobs, job)
	return nil
}

type fakeAnswerKeyStore struct {
	key []model.AnswerKeyEntry
}

func (s *fakeAnswerKeyStore) ListAnswerKey(_ context.Context, _ uuid.UUID) ([]model.AnswerKeyEntry, error) {
	return s.key, nil
}

type suspicionFlagKey struct {
	studentID     int
	attemptNumber int
}

type fakeMonitorStore struct {
	attempts []repository.AttemptOverview
	counts   []repository.EventTypeCount
	flags    map[suspicionFlagKey]string
}

func (s *fakeMonitorStore) ListAttempts(_ context.Context, _ uuid.UUID) ([]repository.AttemptOverview, error) {
	return s.attempts, nil
}

func (s *fakeMonitorStore) GetEventTypeCounts(_ context.Context, _ uuid.UUID) ([]repository.EventTypeCount, error) {
	return s.counts, nil
}

func (s *fakeMonitorStore) GetSuspicionFlag(_ context.Context, _ uuid.UUID, studentID, attemptNumber int) (string, error) {
	return s.flags[suspicionFlagKey{studentID, attemptNumber}], nil
}
