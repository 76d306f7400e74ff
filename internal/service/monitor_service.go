package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
)

// MonitorService builds the live proctoring overview a teacher's dashboard
// polls. The suspicion rule here is a dashboard default, not a core
// invariant: the event log stays the authoritative record and downstream
// consumers are free to score it differently.
type MonitorService struct {
	assignments AssignmentStore
	monitor     MonitorStore
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(assignments AssignmentStore, monitor MonitorStore) *MonitorService {
	return &MonitorService{assignments: assignments, monitor: monitor}
}

// SeverityTally counts one attempt's student signals by severity class.
type SeverityTally struct {
	Low    int64 `json:"low"`
	Medium int64 `json:"medium"`
	High   int64 `json:"high"`
}

// SuspicionFlagged applies the default heuristic: one high-severity signal,
// or three combined high+medium signals, marks the attempt high-suspicion.
func SuspicionFlagged(tally SeverityTally) bool {
	return tally.High >= 1 || tally.High+tally.Medium >= 3
}

// AttemptSuspicion is one row of the monitoring snapshot.
type AttemptSuspicion struct {
	StudentID     int                 `json:"student_id"`
	AttemptNumber int                 `json:"attempt_number"`
	Status        model.AttemptStatus `json:"status"`
	Tally         SeverityTally       `json:"tally"`
	Flagged       bool                `json:"flagged"`
	WorkerFlag    string              `json:"worker_flag,omitempty"`
}

// Snapshot returns the per-attempt suspicion overview for an assignment the
// teacher owns. Attempt rows and event counts are fetched concurrently.
func (s *MonitorService) Snapshot(ctx context.Context, assignmentID uuid.UUID, teacherID int) ([]AttemptSuspicion, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	owner, err := s.assignments.IsOwner(ctx, teacherID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("check ownership: %w", err)
	}
	if !owner {
		return nil, ErrForbidden
	}

	var (
		attempts    []repository.AttemptOverview
		counts      []repository.EventTypeCount
		attemptsErr error
		countsErr   error
		wg          sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		attempts, attemptsErr = s.monitor.ListAttempts(ctx, assignmentID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		counts, countsErr = s.monitor.GetEventTypeCounts(ctx, assignmentID)
	}()

	wg.Wait()

	// Attempt rows are the backbone of the snapshot; counts are additive.
	if attemptsErr != nil {
		return nil, fmt.Errorf("list attempts: %w", attemptsErr)
	}
	if countsErr != nil {
		return nil, fmt.Errorf("count events: %w", countsErr)
	}

	type pair struct{ student, attempt int }
	tallies := make(map[pair]SeverityTally)
	for _, c := range counts {
		key := pair{c.StudentID, c.AttemptNumber}
		tally := tallies[key]
		switch c.EventType.Severity() {
		case model.SeverityHigh:
			tally.High += c.Count
		case model.SeverityMedium:
			tally.Medium += c.Count
		case model.SeverityLow:
			tally.Low += c.Count
		}
		tallies[key] = tally
	}

	snapshot := make([]AttemptSuspicion, 0, len(attempts))
	for _, a := range attempts {
		tally := tallies[pair{a.StudentID, a.AttemptNumber}]
		row := AttemptSuspicion{
			StudentID:     a.StudentID,
			AttemptNumber: a.AttemptNumber,
			Status:        a.Status,
			Tally:         tally,
			Flagged:       SuspicionFlagged(tally),
		}
		// The worker flag is a cached convenience; ignore read failures.
		if flag, err := s.monitor.GetSuspicionFlag(ctx, assignmentID, a.StudentID, a.AttemptNumber); err == nil {
			row.WorkerFlag = flag
		}
		snapshot = append(snapshot, row)
	}

	return snapshot, nil
}
