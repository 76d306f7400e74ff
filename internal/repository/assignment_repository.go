package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classwork-backend/internal/model"
)

// AssignmentRepository handles read access to assignment configuration.
// Assignment CRUD is owned by the classwork module; this subsystem only
// consumes the stored configuration for window, quota, and policy checks.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// GetByID retrieves an assignment by its UUID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{}
	var antiCheat []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, teacher_id, title, type, open_at, lock_at, due_date,
		        time_limit_minutes, max_attempts, anti_cheat, created_at, updated_at
		 FROM assignments WHERE id = $1`, id,
	).Scan(&a.ID, &a.TeacherID, &a.Title, &a.Type, &a.OpenAt, &a.LockAt, &a.DueDate,
		&a.TimeLimitMinutes, &a.MaxAttempts, &antiCheat, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(antiCheat) > 0 {
		if err := json.Unmarshal(antiCheat, &a.AntiCheat); err != nil {
			return nil, fmt.Errorf("decode anti_cheat config: %w", err)
		}
	}
	return a, nil
}

// IsOwner reports whether the teacher owns the assignment.
func (r *AssignmentRepository) IsOwner(ctx context.Context, teacherID int, assignmentID uuid.UUID) (bool, error) {
	var owner bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM assignments WHERE id = $1 AND teacher_id = $2
		 )`, assignmentID, teacherID,
	).Scan(&owner)
	if err != nil {
		return false, err
	}
	return owner, nil
}
