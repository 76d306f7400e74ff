package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// AttemptDeadlineKey returns the cache key for an attempt's hard deadline (unix seconds)
func (r *CacheKeyStruct) AttemptDeadlineKey(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:deadline", studentID, assignmentID)
}

// AttemptControlChannel returns the Redis PubSub channel carrying teacher
// interventions (pause/resume/extend/terminate) for one student's attempt
func (r *CacheKeyStruct) AttemptControlChannel(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:control", studentID, assignmentID)
}

// AssignmentMonitorChannel returns the Redis PubSub channel name for an
// assignment's live proctoring feed
func (r *CacheKeyStruct) AssignmentMonitorChannel(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:monitor", assignmentID)
}

// SuspicionFlagKey returns the cache key holding the computed suspicion level
// for one (student, attempt) pair
func (r *CacheKeyStruct) SuspicionFlagKey(assignmentID string, studentID, attemptNumber int) string {
	return fmt.Sprintf("assignment:%s:student:%d:attempt:%d:suspicion", assignmentID, studentID, attemptNumber)
}

var CacheKey = NewCacheKeyStruct()
