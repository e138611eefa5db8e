package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// FieldViolation describes one failed rule on one request field.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError aggregates every violated field rule for a request. The
// caller receives the full list, not just the first failure.
type ValidationError struct {
	Violations []FieldViolation
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a violation.
func (e *ValidationError) Add(field, rule, message string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Rule: rule, Message: message})
}

// HasViolations reports whether any rule failed.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// ForbiddenTransitionError signals that the actor is not entitled to mutate
// the expense or report at the current approval step.
type ForbiddenTransitionError struct {
	ActorID int64
	Reason  string
}

func (e *ForbiddenTransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("actor %d may not act on this step", e.ActorID)
	}
	return fmt.Sprintf("actor %d may not act on this step: %s", e.ActorID, e.Reason)
}

// NoApproversConfiguredError is returned when a report is submitted into an
// area whose approver chain is empty.
type NoApproversConfiguredError struct {
	AreaID int64
}

func (e *NoApproversConfiguredError) Error() string {
	return fmt.Sprintf("area %d has no approvers configured", e.AreaID)
}

// DuplicateApproverError is returned when a user already appears in an
// area's approver chain.
type DuplicateApproverError struct {
	AreaID int64
	UserID int64
}

func (e *DuplicateApproverError) Error() string {
	return fmt.Sprintf("user %d is already an approver for area %d", e.UserID, e.AreaID)
}

// ConflictError signals a concurrent-modification race. The caller must
// refetch and retry; nothing was written.
type ConflictError struct {
	Entity string
	ID     int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d was modified concurrently, refetch and retry", e.Entity, e.ID)
}

// UserSafeMessage returns a message suitable for end users. Business-rule
// rejections carry their own wording; anything else collapses to a generic
// failure so internals never leak.
func UserSafeMessage(err error) string {
	var (
		validation *ValidationError
		forbidden  *ForbiddenTransitionError
		noChain    *NoApproversConfiguredError
		duplicate  *DuplicateApproverError
		conflict   *ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &forbidden):
		return forbidden.Error()
	case errors.As(err, &noChain):
		return noChain.Error()
	case errors.As(err, &duplicate):
		return duplicate.Error()
	case errors.As(err, &conflict):
		return conflict.Error()
	case errors.Is(err, ErrNotFound):
		return "the requested record was not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	default:
		return "the request could not be processed"
	}
}
