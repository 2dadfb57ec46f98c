package errorlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// FileLogger appends failures to one JSON array file per day
type FileLogger struct {
	storagePath   string
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
	mu            sync.Mutex
}

// NewFileLogger creates a new file-based error logger
func NewFileLogger(storagePath string, retentionDays int, logger *slog.Logger) (*FileLogger, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create error log directory: %w", err)
	}

	return &FileLogger{
		storagePath:   storagePath,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (f *FileLogger) pathFor(day time.Time) string {
	return filepath.Join(f.storagePath, fmt.Sprintf("errors_%s.json", day.UTC().Format(dateLayout)))
}

// LogError records a failure in today's file
func (f *FileLogger) LogError(failure ActionFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if failure.ID == "" {
		failure.ID = uuid.New().String()
	}
	if failure.ErrorTime.IsZero() {
		failure.ErrorTime = f.now().UTC()
	}

	filePath := f.pathFor(f.now())

	failures, err := readFile(filePath)
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", filePath, f.now().UnixNano())
		if renameErr := os.Rename(filePath, aside); renameErr != nil {
			return fmt.Errorf("failed to move unreadable error log file aside: %w", renameErr)
		}
		f.logger.Warn("error log file couldn't be parsed, moved it aside and started a new file",
			"file", filePath,
			"moved_to", aside,
			"error", err)
		failures = nil
	}

	failures = append(failures, failure)

	data, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal error log: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write error log file: %w", err)
	}

	f.logger.Debug("logged action failure",
		"error_id", failure.ID,
		"message_id", failure.MessageID,
		"rule", failure.Rule,
		"file", filePath)

	return nil
}

func readFile(path string) ([]ActionFailure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var failures []ActionFailure
	if err := json.Unmarshal(data, &failures); err != nil {
		return nil, err
	}
	return failures, nil
}

// GetErrors retrieves failures from every log file. Supported filter keys
// are folder, rule, action, username and message_id.
func (f *FileLogger) GetErrors(filters map[string]string) ([]ActionFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	files, err := os.ReadDir(f.storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read error log directory: %w", err)
	}

	var out []ActionFailure
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		filePath := filepath.Join(f.storagePath, file.Name())
		failures, err := readFile(filePath)
		if err != nil {
			f.logger.Warn("failed to read error log file", "file", filePath, "error", err)
			continue
		}

		for _, failure := range failures {
			if matches(failure, filters) {
				out = append(out, failure)
			}
		}
	}

	return out, nil
}

func matches(failure ActionFailure, filters map[string]string) bool {
	for key, value := range filters {
		var got string
		switch key {
		case "folder":
			got = failure.Folder
		case "rule":
			got = failure.Rule
		case "action":
			got = failure.Action
		case "username":
			got = failure.Username
		case "message_id":
			got = strconv.FormatUint(uint64(failure.MessageID), 10)
		default:
			continue
		}
		if got != value {
			return false
		}
	}
	return true
}

// CleanupOldErrors removes daily files older than the retention period
func (f *FileLogger) CleanupOldErrors() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	retentionDays := f.retentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := f.now().UTC().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(f.storagePath)
	if err != nil {
		return fmt.Errorf("failed to read error log directory: %w", err)
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, "errors_") || filepath.Ext(name) != ".json" {
			continue
		}

		day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, "errors_"), ".json"))
		if err != nil {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}

		filePath := filepath.Join(f.storagePath, name)
		if err := os.Remove(filePath); err != nil {
			f.logger.Warn("failed to delete old error log file", "file", filePath, "error", err)
			continue
		}
		f.logger.Debug("deleted old error log file", "file", filePath)
	}

	return nil
}

// Close implements the Logger interface
func (f *FileLogger) Close() error {
	return nil
}
