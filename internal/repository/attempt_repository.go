package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classwork-backend/internal/model"
)

const attemptColumns = `id, assignment_id, student_id, attempt_number, shuffle_seed,
	        status, started_at, ended_at, time_limit_minutes, anti_cheat`

// AttemptRepository handles attempt data access. Concurrency control lives in
// the SQL: a partial unique index guarantees at most one open attempt per
// (assignment, student), and every mutation is a status-predicated UPDATE so
// a racing writer observes pgx.ErrNoRows instead of silently overwriting.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var antiCheat []byte
	err := row.Scan(&a.ID, &a.AssignmentID, &a.StudentID, &a.AttemptNumber, &a.ShuffleSeed,
		&a.Status, &a.StartedAt, &a.EndedAt, &a.TimeLimitMinutes, &antiCheat)
	if err != nil {
		return nil, err
	}
	if len(antiCheat) > 0 {
		if err := json.Unmarshal(antiCheat, &a.AntiCheat); err != nil {
			return nil, fmt.Errorf("decode anti_cheat snapshot: %w", err)
		}
	}
	return a, nil
}

// GetOpen retrieves the single open (IN_PROGRESS or PAUSED_BY_TEACHER)
// attempt for an assignment-student pair, or pgx.ErrNoRows.
func (r *AttemptRepository) GetOpen(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE assignment_id = $1 AND student_id = $2
		   AND status IN ('IN_PROGRESS', 'PAUSED_BY_TEACHER')`,
		assignmentID, studentID,
	))
}

// GetByNumber retrieves a specific attempt by its 1-based number.
func (r *AttemptRepository) GetByNumber(ctx context.Context, assignmentID uuid.UUID, studentID, attemptNumber int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE assignment_id = $1 AND student_id = $2 AND attempt_number = $3`,
		assignmentID, studentID, attemptNumber,
	))
}

// GetLatest retrieves the most recently started attempt for the pair.
func (r *AttemptRepository) GetLatest(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE assignment_id = $1 AND student_id = $2
		 ORDER BY started_at DESC, attempt_number DESC
		 LIMIT 1`,
		assignmentID, studentID,
	))
}

// MaxAttemptNumber returns the highest attempt number recorded for the pair,
// or 0 when the student has never started.
func (r *AttemptRepository) MaxAttemptNumber(ctx context.Context, assignmentID uuid.UUID, studentID int) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0)
		 FROM attempts
		 WHERE assignment_id = $1 AND student_id = $2`,
		assignmentID, studentID,
	).Scan(&max)
	return max, err
}

// Create inserts a new attempt. The uq_attempts_open partial index makes the
// insert a no-op when another open attempt raced in first; ON CONFLICT DO
// NOTHING then surfaces as pgx.ErrNoRows and the caller re-reads the winner.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	antiCheat, err := json.Marshal(a.AntiCheat)
	if err != nil {
		return fmt.Errorf("encode anti_cheat snapshot: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts
		   (assignment_id, student_id, attempt_number, shuffle_seed, status, time_limit_minutes, anti_cheat)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING
		 RETURNING id, started_at`,
		a.AssignmentID, a.StudentID, a.AttemptNumber, a.ShuffleSeed,
		model.AttemptStatusInProgress, a.TimeLimitMinutes, antiCheat,
	).Scan(&a.ID, &a.StartedAt)
}

// SetStatus transitions an attempt to next, stamping (or clearing) ended_at,
// but only if the row still holds the status the caller observed. Returns
// pgx.ErrNoRows when a concurrent writer won the race.
func (r *AttemptRepository) SetStatus(ctx context.Context, id uuid.UUID, observed, next model.AttemptStatus, endedAt *time.Time) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $3, ended_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING `+attemptColumns,
		id, observed, next, endedAt,
	))
}

// ExtendTime adds minutes to the attempt's time-limit snapshot without
// touching status. Same compare-and-swap contract as SetStatus.
func (r *AttemptRepository) ExtendTime(ctx context.Context, id uuid.UUID, observed model.AttemptStatus, minutes int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET time_limit_minutes = COALESCE(time_limit_minutes, 0) + $3
		 WHERE id = $1 AND status = $2
		 RETURNING `+attemptColumns,
		id, observed, minutes,
	))
}
