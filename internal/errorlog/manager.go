package errorlog

import (
	"fmt"
	"log/slog"

	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/types"
)

// Manager writes the failures of a run to the configured sink
type Manager struct {
	server   string
	username string
	logger   *slog.Logger
	impl     Logger
}

// NewManager creates a new error logging manager. A disabled error log
// yields a manager that discards everything.
func NewManager(cfg *types.Config, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		server:   cfg.IMAP.Host,
		username: cfg.IMAP.Username,
		logger:   logger,
		impl:     noopLogger{},
	}

	if !cfg.ErrorLog.Enabled {
		logger.Debug("error logging is disabled")
		return m, nil
	}

	impl, err := NewFileLogger(cfg.ErrorLog.StoragePath, cfg.ErrorLog.RetentionDays, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize error logger: %w", err)
	}
	m.impl = impl
	return m, nil
}

// LogRun records every error of summary, returning how many were written
func (m *Manager) LogRun(folder string, summary *engine.RunSummary) (int, error) {
	written := 0
	for _, e := range summary.Errors {
		err := m.impl.LogError(ActionFailure{
			Server:    m.server,
			Username:  m.username,
			Folder:    folder,
			MessageID: uint32(e.MessageID),
			Rule:      e.Rule,
			Action:    e.Action,
			ErrorTime: e.Time,
			ErrorMsg:  e.Err.Error(),
		})
		if err != nil {
			return written, err
		}
		written++
	}

	if err := m.impl.CleanupOldErrors(); err != nil {
		m.logger.Warn("failed to clean up old error logs", "error", err)
	}
	return written, nil
}

// GetErrors retrieves errors based on filters
func (m *Manager) GetErrors(filters map[string]string) ([]ActionFailure, error) {
	return m.impl.GetErrors(filters)
}

// Close releases any resources used by the logger
func (m *Manager) Close() error {
	return m.impl.Close()
}

// noopLogger is used when error logging is disabled
type noopLogger struct{}

func (noopLogger) LogError(ActionFailure) error                         { return nil }
func (noopLogger) GetErrors(map[string]string) ([]ActionFailure, error) { return nil, nil }
func (noopLogger) CleanupOldErrors() error                              { return nil }
func (noopLogger) Close() error                                         { return nil }
