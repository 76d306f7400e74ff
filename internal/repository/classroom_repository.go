package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClassroomRepository handles classroom membership lookups. It answers the
// single authorization question the attempt lifecycle needs: is this student
// a member of any classroom the assignment is assigned to?
type ClassroomRepository struct {
	pool *pgxpool.Pool
}

// NewClassroomRepository creates a new ClassroomRepository.
func NewClassroomRepository(pool *pgxpool.Pool) *ClassroomRepository {
	return &ClassroomRepository{pool: pool}
}

// MemberClassroomID returns the id of a classroom that both contains the
// student and has the assignment assigned to it, or nil when none exists.
func (r *ClassroomRepository) MemberClassroomID(ctx context.Context, studentID int, assignmentID uuid.UUID) (*uuid.UUID, error) {
	var classroomID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT cm.classroom_id
		 FROM classroom_members cm
		 JOIN assignment_classrooms ac ON ac.classroom_id = cm.classroom_id
		 WHERE cm.student_id = $1 AND ac.assignment_id = $2
		 LIMIT 1`, studentID, assignmentID,
	).Scan(&classroomID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &classroomID, nil
}
