package engine

import (
	"fmt"
	"time"
)

// ActionError records one failed action
type ActionError struct {
	MessageID MessageID
	Rule      string
	Action    string
	Err       error
	Time      time.Time
}

func (e ActionError) Error() string {
	return fmt.Sprintf("message %d: rule %q: %s: %v", e.MessageID, e.Rule, e.Action, e.Err)
}

func (e ActionError) Unwrap() error {
	return e.Err
}

// RunSummary accumulates the outcome of one Apply call
type RunSummary struct {
	DryRun bool

	Examined  int // envelopes resolved
	Processed int // messages with at least one matching rule
	Matched   int // rule matches across all messages
	Moved     int
	Copied    int
	Deleted   int
	Marked    int

	// Errors is complete and in execution order
	Errors []ActionError
}

// Actions returns the number of actions performed, or planned in a dry run
func (s *RunSummary) Actions() int {
	return s.Moved + s.Copied + s.Deleted + s.Marked
}

// FirstErrors returns at most n errors for display
func (s *RunSummary) FirstErrors(n int) []ActionError {
	if n < 0 || n >= len(s.Errors) {
		return s.Errors
	}
	return s.Errors[:n]
}
