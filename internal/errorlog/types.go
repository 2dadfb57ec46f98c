package errorlog

import (
	"time"
)

// ActionFailure is one failed rule action as written to the error log
type ActionFailure struct {
	ID        string    `json:"id"`
	Server    string    `json:"server"`
	Username  string    `json:"username"`
	Folder    string    `json:"folder"`
	MessageID uint32    `json:"message_id"`
	Rule      string    `json:"rule"`
	Action    string    `json:"action"`
	ErrorTime time.Time `json:"error_time"`
	ErrorMsg  string    `json:"error_message"`
}

// Logger defines the interface for action failure logging
type Logger interface {
	// LogError records a failure
	LogError(f ActionFailure) error

	// GetErrors retrieves failures matching all filters
	GetErrors(filters map[string]string) ([]ActionFailure, error)

	// CleanupOldErrors removes log files older than the retention period
	CleanupOldErrors() error

	// Close releases any resources used by the logger
	Close() error
}
