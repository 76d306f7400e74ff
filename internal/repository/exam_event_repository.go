package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classwork-backend/internal/model"
)

const (
	// DefaultEventPageSize is used when a caller passes no limit.
	DefaultEventPageSize = 50
	// MaxEventPageSize caps a single event-log read.
	MaxEventPageSize = 200
)

// ExamEventRepository handles the append-only exam event log. There is no
// update or delete path: rows are written once and only ever read back.
type ExamEventRepository struct {
	pool *pgxpool.Pool
}

// NewExamEventRepository creates a new ExamEventRepository.
func NewExamEventRepository(pool *pgxpool.Pool) *ExamEventRepository {
	return &ExamEventRepository{pool: pool}
}

// Insert appends one event and fills in its id and created_at.
func (r *ExamEventRepository) Insert(ctx context.Context, e *model.ExamEvent) error {
	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_events (assignment_id, student_id, attempt, event_type, metadata)
		 VALUES ($1, $2, $3, $4, $5::jsonb)
		 RETURNING id, created_at`,
		e.AssignmentID, e.StudentID, e.Attempt, e.EventType, metadata,
	).Scan(&e.ID, &e.CreatedAt)
}

// List retrieves events for an assignment, newest first, narrowed by the
// optional filters and capped to MaxEventPageSize rows.
func (r *ExamEventRepository) List(ctx context.Context, assignmentID uuid.UUID, filter model.EventFilter) ([]model.ExamEvent, error) {
	query := `SELECT id, assignment_id, student_id, attempt, event_type, metadata, created_at
	          FROM exam_events
	          WHERE assignment_id = $1`
	args := []any{assignmentID}

	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		query += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filter.Attempt != nil {
		args = append(args, *filter.Attempt)
		query += fmt.Sprintf(" AND attempt = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventPageSize
	}
	if limit > MaxEventPageSize {
		limit = MaxEventPageSize
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ExamEvent
	for rows.Next() {
		var e model.ExamEvent
		if err := rows.Scan(&e.ID, &e.AssignmentID, &e.StudentID, &e.Attempt,
			&e.EventType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
