package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/model"
)

// AttemptService is the attempt registry: it owns attempt creation, the
// idempotent resume of an open attempt, and the runtime state read. Attempt
// numbering is authoritative here; the legacy submission counter is only
// reconciled, never written.
type AttemptService struct {
	assignments AssignmentStore
	classrooms  ClassroomStore
	attempts    AttemptStore
	submissions SubmissionStore
	cache       AttemptCache
	log         zerolog.Logger

	now     func() time.Time
	newSeed func() (int64, error)
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	assignments AssignmentStore,
	classrooms ClassroomStore,
	attempts AttemptStore,
	submissions SubmissionStore,
	cache AttemptCache,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		assignments: assignments,
		classrooms:  classrooms,
		attempts:    attempts,
		submissions: submissions,
		cache:       cache,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
		newSeed:     cryptoSeed,
	}
}

// cryptoSeed draws a non-negative int64 from crypto/rand. The seed must be
// unpredictable: a student who can guess it can precompute the question
// order of a future attempt.
func cryptoSeed() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1), nil
}

// Start begins or resumes a quiz attempt. When an open attempt exists it is
// returned unchanged, so retries and reloads never consume a new attempt
// number. Window and quota checks run against the stored configuration only.
func (s *AttemptService) Start(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	assignment, err := s.getQuizAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMembership(ctx, studentID, assignmentID); err != nil {
		return nil, err
	}

	now := s.now()
	if assignment.OpenAt != nil && now.Before(*assignment.OpenAt) {
		return nil, ErrWindowNotOpen
	}
	if lock := assignment.EffectiveLockTime(); lock != nil && !now.Before(*lock) {
		return nil, ErrWindowClosed
	}

	// Idempotency: an open attempt (running or paused) is simply handed back.
	open, err := s.attempts.GetOpen(ctx, assignmentID, studentID)
	if err == nil {
		s.cacheDeadline(ctx, open)
		return open, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find open attempt: %w", err)
	}

	// The legacy submission counter and the attempt registry numbered
	// attempts independently; reconcile with max() so neither can reuse a
	// number the other has already handed out.
	maxSubmission, err := s.submissions.MaxAttempt(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("read submission counter: %w", err)
	}
	maxAttempt, err := s.attempts.MaxAttemptNumber(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("read attempt counter: %w", err)
	}
	next := maxSubmission
	if maxAttempt > next {
		next = maxAttempt
	}
	next++

	if next > assignment.EffectiveMaxAttempts() {
		return nil, ErrQuotaExceeded
	}

	seed, err := s.newSeed()
	if err != nil {
		return nil, fmt.Errorf("generate shuffle seed: %w", err)
	}

	attempt := &model.Attempt{
		AssignmentID:  assignmentID,
		StudentID:     studentID,
		AttemptNumber: next,
		ShuffleSeed:   seed,
		Status:        model.AttemptStatusInProgress,
		AntiCheat:     assignment.AntiCheat,
	}
	if assignment.TimeLimitMinutes != nil {
		limit := *assignment.TimeLimitMinutes
		attempt.TimeLimitMinutes = &limit
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent start won the partial unique index; return the
			// winner so both callers see the same attempt and seed.
			winner, fetchErr := s.attempts.GetOpen(ctx, assignmentID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			s.cacheDeadline(ctx, winner)
			return winner, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.cacheDeadline(ctx, attempt)
	return attempt, nil
}

// State returns the student's open attempt plus the remaining seconds, using
// the cached deadline with a Postgres fallback that self-heals the cache.
func (s *AttemptService) State(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.AttemptState, error) {
	attempt, err := s.attempts.GetOpen(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find open attempt: %w", err)
	}

	state := &model.AttemptState{Attempt: *attempt}
	if attempt.TimeLimitMinutes == nil {
		return state, nil
	}

	deadline, err := s.cache.GetAttemptDeadline(ctx, assignmentID, studentID)
	if err != nil {
		// Cache miss or Redis trouble: recompute from the durable row and
		// put it back so the next poll is fast.
		deadline = attemptDeadline(attempt)
		if cacheErr := s.cache.SetAttemptDeadline(ctx, assignmentID, studentID, deadline); cacheErr != nil {
			s.log.Warn().Err(cacheErr).Msg("failed to self-heal deadline cache")
		}
	}

	remaining := deadline.Sub(s.now()).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	state.RemainingSeconds = &remaining
	return state, nil
}

func (s *AttemptService) getQuizAssignment(ctx context.Context, assignmentID uuid.UUID) (*model.Assignment, error) {
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
	return assignment, nil
}

func (s *AttemptService) requireMembership(ctx context.Context, studentID int, assignmentID uuid.UUID) error {
	classroomID, err := s.classrooms.MemberClassroomID(ctx, studentID, assignmentID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if classroomID == nil {
		return ErrForbidden
	}
	return nil
}

// cacheDeadline refreshes the Redis deadline for an attempt with a time
// limit. Best-effort: the State fallback covers a failed write.
func (s *AttemptService) cacheDeadline(ctx context.Context, attempt *model.Attempt) {
	if attempt.TimeLimitMinutes == nil {
		return
	}
	deadline := attemptDeadline(attempt)
	if err := s.cache.SetAttemptDeadline(ctx, attempt.AssignmentID, attempt.StudentID, deadline); err != nil {
		s.log.Warn().Err(err).
			Str("assignment_id", attempt.AssignmentID.String()).
			Int("student_id", attempt.StudentID).
			Msg("failed to cache attempt deadline")
	}
}

func attemptDeadline(attempt *model.Attempt) time.Time {
	limit := 0
	if attempt.TimeLimitMinutes != nil {
		limit = *attempt.TimeLimitMinutes
	}
	return attempt.StartedAt.Add(time.Duration(limit) * time.Minute)
}
