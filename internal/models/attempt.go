package models

import "time"

// AttemptType classifies an authentication or enumeration attempt
type AttemptType string

const (
	AttemptLogin        AttemptType = "login"
	AttemptRegistration AttemptType = "registration"
	AttemptEmailCheck   AttemptType = "email_check"
)

// Valid reports whether the type is one the limiter tracks
func (t AttemptType) Valid() bool {
	switch t {
	case AttemptLogin, AttemptRegistration, AttemptEmailCheck:
		return true
	}
	return false
}

// AuthAttempt is an ephemeral record held only in the limiter's memory.
// Never persisted to the data store.
type AuthAttempt struct {
	Timestamp time.Time
	Success   bool
	Type      AttemptType
}

// LimitDecision is the outcome of a rate-limit check. RetryAfter is the
// number of seconds until the oldest offending attempt exits the window.
type LimitDecision struct {
	Allowed    bool
	Reason     string
	RetryAfter int
}
