package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/config"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
	"github.com/stemsi/classwork-backend/internal/service"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis

	// Flags expire so a stale dashboard never shows a verdict the event log
	// no longer supports.
	suspicionFlagTTL = 6 * time.Hour
)

// SuspicionWorker drains the recalculation queue and refreshes the cached
// suspicion flag for each (assignment, student, attempt) that produced new
// proctoring signals. Recalculation is idempotent: a lost job is repaired by
// the next signal from the same student.
type SuspicionWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewSuspicionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SuspicionWorker {
	return &SuspicionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "suspicion_worker").Logger(),
	}
}

type suspicionKey struct {
	AssignmentID string
	StudentID    int
	Attempt      int
}

func (w *SuspicionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SuspicionWorker started")

	// Jobs are deduplicated per batch window: a burst of signals from one
	// student collapses into a single recomputation.
	pending := make(map[suspicionKey]struct{}, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(pending) > 0 {
			if len(pending) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flush(ctx, pending)
				pending = make(map[suspicionKey]struct{}, BatchSize)
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(pending)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis
		// BLPop blocks for 1 second. Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.SuspicionRecalcQueue).Result()

		if err != nil {
			if err == redis.Nil {
				continue // Timeout (Queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			// Real Redis error (e.g., connection lost)
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var job repository.SuspicionJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			// If JSON is malformed, we CANNOT retry it. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		pending[suspicionKey{
			AssignmentID: job.AssignmentID,
			StudentID:    job.StudentID,
			Attempt:      job.Attempt,
		}] = struct{}{}
	}
}

func (w *SuspicionWorker) flush(ctx context.Context, pending map[suspicionKey]struct{}) {
	for key := range pending {
		if err := w.recompute(ctx, key); err != nil {
			// The event log stays authoritative; the next signal from this
			// student re-enqueues the same key.
			w.log.Error().Err(err).
				Str("assignment_id", key.AssignmentID).
				Int("student_id", key.StudentID).
				Int("attempt", key.Attempt).
				Msg("Suspicion recompute failed")
		}
	}
}

// recompute tallies all student signals for one (assignment, student,
// attempt), stores the flag in Redis, and notifies attached dashboards.
func (w *SuspicionWorker) recompute(ctx context.Context, key suspicionKey) error {
	assignmentID, err := uuid.Parse(key.AssignmentID)
	if err != nil {
		w.log.Error().Str("assignment_id", key.AssignmentID).Msg("Dropping job with invalid UUID")
		return nil
	}

	rows, err := w.pool.Query(ctx,
		`SELECT event_type, COUNT(*)
		 FROM exam_events
		 WHERE assignment_id = $1 AND student_id = $2 AND COALESCE(attempt, 0) = $3
		   AND event_type LIKE 'STUDENT_%'
		 GROUP BY event_type`,
		assignmentID, key.StudentID, key.Attempt,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var tally service.SeverityTally
	for rows.Next() {
		var eventType model.EventType
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return err
		}
		switch eventType.Severity() {
		case model.SeverityHigh:
			tally.High += count
		case model.SeverityMedium:
			tally.Medium += count
		case model.SeverityLow:
			tally.Low += count
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	flagged := service.SuspicionFlagged(tally)
	flagKey := config.CacheKey.SuspicionFlagKey(key.AssignmentID, key.StudentID, key.Attempt)
	if flagged {
		if err := w.rdb.Set(ctx, flagKey, "high", suspicionFlagTTL).Err(); err != nil {
			return err
		}
	} else {
		if err := w.rdb.Del(ctx, flagKey).Err(); err != nil {
			return err
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"type":       "suspicion",
		"student_id": key.StudentID,
		"attempt":    key.Attempt,
		"tally":      tally,
		"flagged":    flagged,
	})
	return w.rdb.Publish(ctx, config.CacheKey.AssignmentMonitorChannel(key.AssignmentID), payload).Err()
}

func (w *SuspicionWorker) shutdown(pending map[suspicionKey]struct{}) {
	w.log.Info().Msg("Worker stopping, flushing remaining jobs...")

	// Give it 5 seconds to finish against the DB
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(pending) > 0 {
		w.flush(shutdownCtx, pending)
	}
}
