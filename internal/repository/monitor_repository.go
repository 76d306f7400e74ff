package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/classwork-backend/internal/config"
	"github.com/stemsi/classwork-backend/internal/model"
)

// EventTypeCount is one aggregation bucket of the exam event log.
type EventTypeCount struct {
	StudentID     int
	AttemptNumber int
	EventType     model.EventType
	Count         int64
}

// AttemptOverview is the per-attempt row the monitoring read exposes.
type AttemptOverview struct {
	StudentID     int                 `json:"student_id"`
	AttemptNumber int                 `json:"attempt_number"`
	Status        model.AttemptStatus `json:"status"`
}

// MonitorRepository provides data access for the live monitoring feature.
// It combines PostgreSQL (attempt state, event counts) and Redis (suspicion
// flags precomputed by the background worker).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// ListAttempts returns every attempt recorded for the assignment.
func (r *MonitorRepository) ListAttempts(ctx context.Context, assignmentID uuid.UUID) ([]AttemptOverview, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, attempt_number, status
		 FROM attempts
		 WHERE assignment_id = $1
		 ORDER BY student_id ASC, attempt_number ASC`,
		assignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overviews []AttemptOverview
	for rows.Next() {
		var o AttemptOverview
		if err := rows.Scan(&o.StudentID, &o.AttemptNumber, &o.Status); err != nil {
			return nil, err
		}
		overviews = append(overviews, o)
	}
	return overviews, rows.Err()
}

// GetEventTypeCounts aggregates student-reported signals for the assignment,
// grouped by (student, attempt, event type). Signals reported without an
// attempt number land in bucket 0.
func (r *MonitorRepository) GetEventTypeCounts(ctx context.Context, assignmentID uuid.UUID) ([]EventTypeCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, COALESCE(attempt, 0), event_type, COUNT(*)
		 FROM exam_events
		 WHERE assignment_id = $1 AND event_type LIKE 'STUDENT_%'
		 GROUP BY student_id, COALESCE(attempt, 0), event_type`,
		assignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []EventTypeCount
	for rows.Next() {
		var c EventTypeCount
		if err := rows.Scan(&c.StudentID, &c.AttemptNumber, &c.EventType, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetSuspicionFlag reads the worker-computed suspicion level for one
// (student, attempt) pair. Empty string means no flag has been computed yet.
func (r *MonitorRepository) GetSuspicionFlag(ctx context.Context, assignmentID uuid.UUID, studentID, attemptNumber int) (string, error) {
	val, err := r.rdb.Get(ctx, config.CacheKey.SuspicionFlagKey(assignmentID.String(), studentID, attemptNumber)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}
