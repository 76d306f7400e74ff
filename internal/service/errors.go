package service

import "errors"

// Domain errors for the attempt lifecycle. Handlers map these to stable
// response codes at the boundary; storage errors never travel past a service.
var (
	// ErrNotFound means the assignment, attempt, or override target is missing.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden means wrong role, not a classroom member, not the
	// assignment owner, or wrong assignment type.
	ErrForbidden = errors.New("forbidden")
	// ErrWindowNotOpen means the attempt window has not opened yet.
	ErrWindowNotOpen = errors.New("attempt window not open")
	// ErrWindowClosed means the effective lock time has passed.
	ErrWindowClosed = errors.New("attempt window closed")
	// ErrQuotaExceeded means the attempt limit is reached.
	ErrQuotaExceeded = errors.New("attempt quota exceeded")
	// ErrInvalidAction means an unsupported or out-of-state override, an
	// unknown event code, or non-positive extension minutes.
	ErrInvalidAction = errors.New("invalid action")
	// ErrPolicyDenied means answer disclosure is not permitted yet.
	ErrPolicyDenied = errors.New("disclosure denied by policy")
)
