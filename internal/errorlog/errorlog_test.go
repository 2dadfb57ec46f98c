package errorlog

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileLoggerAppendsToDailyFile(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, 30, discardLogger())
	require.NoError(t, err)
	fl.now = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, fl.LogError(ActionFailure{MessageID: 1, Rule: "news", Action: "move to News", ErrorMsg: "boom"}))
	require.NoError(t, fl.LogError(ActionFailure{MessageID: 2, Rule: "big", Action: "delete", ErrorMsg: "nope"}))

	_, err = os.Stat(filepath.Join(dir, "errors_2024-05-02.json"))
	require.NoError(t, err)

	all, err := fl.GetErrors(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotEmpty(t, all[0].ID)
	assert.NotEqual(t, all[0].ID, all[1].ID)
	assert.Equal(t, fl.now(), all[0].ErrorTime)

	big, err := fl.GetErrors(map[string]string{"rule": "big"})
	require.NoError(t, err)
	require.Len(t, big, 1)
	assert.Equal(t, uint32(2), big[0].MessageID)

	byID, err := fl.GetErrors(map[string]string{"message_id": "1"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}

func TestFileLoggerKeepsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, 30, discardLogger())
	require.NoError(t, err)
	fl.now = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }
	path := fl.pathFor(fl.now())
	require.NoError(t, os.WriteFile(path, []byte("[{\"rule\": \"earlier\""), 0644))

	require.NoError(t, fl.LogError(ActionFailure{Rule: "r"}))

	all, err := fl.GetErrors(nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "r", all[0].Rule)

	aside, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, aside, 1)
	data, err := os.ReadFile(aside[0])
	require.NoError(t, err)
	assert.Equal(t, `[{"rule": "earlier"`, string(data))

	// files moved aside are neither read nor cleaned up as day files
	require.NoError(t, fl.CleanupOldErrors())
	_, err = os.Stat(aside[0])
	assert.NoError(t, err)
}

func TestCleanupOldErrors(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, 7, discardLogger())
	require.NoError(t, err)
	fl.now = func() time.Time { return time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC) }

	for _, name := range []string{"errors_2024-05-01.json", "errors_2024-05-19.json", "notes.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0644))
	}

	require.NoError(t, fl.CleanupOldErrors())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"errors_2024-05-19.json", "notes.json"}, names)
}

func TestManagerLogRun(t *testing.T) {
	cfg := &types.Config{}
	cfg.IMAP.Host = "imap.example.com"
	cfg.IMAP.Username = "jane"
	cfg.ErrorLog = types.ErrorLogConfig{Enabled: true, StoragePath: t.TempDir()}

	m, err := NewManager(cfg, discardLogger())
	require.NoError(t, err)
	defer m.Close()

	when := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	summary := &engine.RunSummary{Errors: []engine.ActionError{
		{MessageID: 5, Rule: "news", Action: "move to News", Err: errors.New("quota"), Time: when},
	}}

	n, err := m.LogRun("INBOX", summary)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.GetErrors(map[string]string{"folder": "INBOX"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "imap.example.com", got[0].Server)
	assert.Equal(t, "jane", got[0].Username)
	assert.Equal(t, "quota", got[0].ErrorMsg)
	assert.Equal(t, when, got[0].ErrorTime)
}

func TestManagerDisabled(t *testing.T) {
	m, err := NewManager(&types.Config{}, discardLogger())
	require.NoError(t, err)

	n, err := m.LogRun("INBOX", &engine.RunSummary{Errors: []engine.ActionError{{Err: errors.New("x")}}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.GetErrors(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
