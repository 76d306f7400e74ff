package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmissionRepository reads the legacy submission counters. Submissions are
// written by the grading module; the attempt lifecycle only reconciles
// against them and checks existence for the afterSubmit disclosure mode.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// MaxAttempt returns the highest legacy attempt counter recorded for the
// pair, or 0 when the student has never submitted.
func (r *SubmissionRepository) MaxAttempt(ctx context.Context, assignmentID uuid.UUID, studentID int) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt), 0)
		 FROM submissions
		 WHERE assignment_id = $1 AND student_id = $2`,
		assignmentID, studentID,
	).Scan(&max)
	return max, err
}

// Exists reports whether the student has at least one submission.
func (r *SubmissionRepository) Exists(ctx context.Context, assignmentID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM submissions WHERE assignment_id = $1 AND student_id = $2
		 )`, assignmentID, studentID,
	).Scan(&exists)
	return exists, err
}
