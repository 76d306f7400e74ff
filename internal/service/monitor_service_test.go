package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/repository"
)

func TestSuspicionFlagged(t *testing.T) {
	tests := []struct {
		name  string
		tally SeverityTally
		want  bool
	}{
		{"no signals", SeverityTally{}, false},
		{"low noise only", SeverityTally{Low: 10}, false},
		{"two medium", SeverityTally{Medium: 2}, false},
		{"three medium", SeverityTally{Medium: 3}, true},
		{"one high", SeverityTally{High: 1}, true},
		{"high and medium combine", SeverityTally{High: 1, Medium: 2}, true},
		{"two medium one high", SeverityTally{Medium: 2, High: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SuspicionFlagged(tt.tally); got != tt.want {
				t.Errorf("SuspicionFlagged(%+v) = %v, want %v", tt.tally, got, tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	assignment := quizAssignment(7)
	monitor := &fakeMonitorStore{
		attempts: []repository.AttemptOverview{
			{StudentID: 11, AttemptNumber: 1, Status: model.AttemptStatusInProgress},
			{StudentID: 12, AttemptNumber: 1, Status: model.AttemptStatusPaused},
			{StudentID: 13, AttemptNumber: 2, Status: model.AttemptStatusCompleted},
		},
		counts: []repository.EventTypeCount{
			{StudentID: 11, AttemptNumber: 1, EventType: model.EventTabBlur, Count: 2},
			{StudentID: 11, AttemptNumber: 1, EventType: model.EventCopyDetected, Count: 1},
			{StudentID: 11, AttemptNumber: 1, EventType: model.EventTabFocus, Count: 2},
			{StudentID: 12, AttemptNumber: 1, EventType: model.EventDevtoolsOpen, Count: 1},
			// Signals from a different attempt of the same student stay separate.
			{StudentID: 13, AttemptNumber: 1, EventType: model.EventFullscreenExit, Count: 4},
		},
		flags: map[suspicionFlagKey]string{
			{studentID: 12, attemptNumber: 1}: "high",
		},
	}
	svc := NewMonitorService(newFakeAssignmentStore(assignment), monitor)

	snapshot, err := svc.Snapshot(context.Background(), assignment.ID, 7)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("snapshot rows = %d, want 3", len(snapshot))
	}

	rows := make(map[int]AttemptSuspicion, len(snapshot))
	for _, row := range snapshot {
		rows[row.StudentID] = row
	}

	// Student 11: 2 tab blurs + 1 copy (medium) hit the combined threshold.
	first := rows[11]
	if first.Tally != (SeverityTally{Low: 2, Medium: 3}) {
		t.Errorf("student 11 tally = %+v", first.Tally)
	}
	if !first.Flagged {
		t.Error("student 11 should be flagged by the combined threshold")
	}

	// Student 12: a single devtools signal is enough, and the worker's
	// cached verdict rides along.
	second := rows[12]
	if !second.Flagged || second.WorkerFlag != "high" {
		t.Errorf("student 12 row = %+v", second)
	}

	// Student 13's attempt 2 has no signals of its own.
	third := rows[13]
	if third.Flagged || third.Tally != (SeverityTally{}) {
		t.Errorf("student 13 row = %+v", third)
	}
	if third.Status != model.AttemptStatusCompleted {
		t.Errorf("student 13 status = %s", third.Status)
	}
}

func TestSnapshotAuthorization(t *testing.T) {
	assignment := quizAssignment(7)
	svc := NewMonitorService(newFakeAssignmentStore(assignment), &fakeMonitorStore{})

	if _, err := svc.Snapshot(context.Background(), assignment.ID, 8); !errors.Is(err, ErrForbidden) {
		t.Errorf("Snapshot error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Snapshot(context.Background(), uuid.New(), 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("Snapshot error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotEmptyAssignment(t *testing.T) {
	assignment := quizAssignment(7)
	svc := NewMonitorService(newFakeAssignmentStore(assignment), &fakeMonitorStore{})

	snapshot, err := svc.Snapshot(context.Background(), assignment.ID, 7)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Errorf("snapshot rows = %d, want 0", len(snapshot))
	}
}
