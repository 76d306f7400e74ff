package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/classwork-backend/internal/config"
)

// ErrDeadlineMiss is returned when no deadline is cached for an attempt.
var ErrDeadlineMiss = errors.New("attempt deadline not cached")

// ControlMessage is the payload pushed to a student's control channel when a
// teacher intervenes on their attempt.
type ControlMessage struct {
	Action        string `json:"action"`
	AttemptNumber int    `json:"attempt_number"`
	Status        string `json:"status"`
	Minutes       int    `json:"minutes,omitempty"`
	Reason        string `json:"reason,omitempty"`
	At            int64  `json:"at"`
}

// SuspicionJob asks the background worker to recompute the suspicion flag
// for one (student, attempt) pair.
type SuspicionJob struct {
	AssignmentID string `json:"assignment_id"`
	StudentID    int    `json:"student_id"`
	Attempt      int    `json:"attempt"`
}

// RuntimeCache wraps the Redis-side state that rides along the durable
// Postgres rows: attempt deadlines, the per-student control channel, and the
// suspicion recalculation queue. Every write here is best-effort; Postgres
// remains the source of truth.
type RuntimeCache struct {
	rdb *redis.Client
}

// NewRuntimeCache creates a new RuntimeCache.
func NewRuntimeCache(rdb *redis.Client) *RuntimeCache {
	return &RuntimeCache{rdb: rdb}
}

// SetAttemptDeadline caches the unix-seconds hard deadline of an attempt.
func (c *RuntimeCache) SetAttemptDeadline(ctx context.Context, assignmentID uuid.UUID, studentID int, deadline time.Time) error {
	key := config.CacheKey.AttemptDeadlineKey(assignmentID.String(), studentID)
	return c.rdb.Set(ctx, key, deadline.Unix(), 0).Err()
}

// GetAttemptDeadline reads the cached deadline. ErrDeadlineMiss on a miss so
// callers can fall back to Postgres and self-heal the cache.
func (c *RuntimeCache) GetAttemptDeadline(ctx context.Context, assignmentID uuid.UUID, studentID int) (time.Time, error) {
	key := config.CacheKey.AttemptDeadlineKey(assignmentID.String(), studentID)
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrDeadlineMiss
	}
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, ErrDeadlineMiss
	}
	return time.Unix(unix, 0), nil
}

// ClearAttemptDeadline drops the cached deadline, typically on termination.
func (c *RuntimeCache) ClearAttemptDeadline(ctx context.Context, assignmentID uuid.UUID, studentID int) error {
	key := config.CacheKey.AttemptDeadlineKey(assignmentID.String(), studentID)
	return c.rdb.Del(ctx, key).Err()
}

// PublishControl pushes a teacher intervention onto the student's control
// channel so a connected WebSocket client sees it immediately.
func (c *RuntimeCache) PublishControl(ctx context.Context, assignmentID uuid.UUID, studentID int, msg ControlMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	channel := config.CacheKey.AttemptControlChannel(assignmentID.String(), studentID)
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// EnqueueSuspicion schedules a suspicion-flag recalculation.
func (c *RuntimeCache) EnqueueSuspicion(ctx context.Context, job SuspicionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.rdb.RPush(ctx, config.WorkerKey.SuspicionRecalcQueue, payload).Err()
}
