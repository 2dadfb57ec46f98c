package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/errorlog"
	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `filters:
  - name: Newsletters
    priority: 1
    conditions:
      - field: from
        operator: contains
        value: news@
    actions:
      - type: move
        folder: News
`

type fakeSession struct {
	envelopes map[engine.MessageID]engine.Envelope
	selected  string
	criteria  engine.SearchCriteria
	fetched   []engine.MessageID
	moves     []engine.MessageID
	moveErr   error
	closed    bool
}

func (f *fakeSession) ListFolders(context.Context) ([]string, error) {
	return []string{"INBOX", "News"}, nil
}

func (f *fakeSession) SelectFolder(_ context.Context, name string) (engine.FolderStatus, error) {
	f.selected = name
	return engine.FolderStatus{Name: name, Total: uint32(len(f.envelopes))}, nil
}

func (f *fakeSession) Search(_ context.Context, criteria engine.SearchCriteria) ([]engine.MessageID, error) {
	f.criteria = criteria
	ids := make([]engine.MessageID, 0, len(f.envelopes))
	for id := range f.envelopes {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeSession) FetchEnvelopes(_ context.Context, ids []engine.MessageID) (map[engine.MessageID]engine.Envelope, error) {
	out := map[engine.MessageID]engine.Envelope{}
	for _, id := range ids {
		f.fetched = append(f.fetched, id)
		if env, ok := f.envelopes[id]; ok {
			out[id] = env
		}
	}
	return out, nil
}

func (f *fakeSession) EnsureFolder(context.Context, string) error { return nil }

func (f *fakeSession) Move(_ context.Context, id engine.MessageID, _ string) error {
	f.moves = append(f.moves, id)
	return f.moveErr
}

func (f *fakeSession) Copy(context.Context, engine.MessageID, string) error { return nil }
func (f *fakeSession) Delete(context.Context, engine.MessageID) error       { return nil }
func (f *fakeSession) Mark(context.Context, engine.MessageID, string) error { return nil }

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, rules string) *types.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &types.Config{}
	cfg.IMAP.Host = "imap.example.com"
	cfg.IMAP.Username = "jane"
	cfg.Filters.Path = filepath.Join(dir, "filters.yaml")
	if rules != "" {
		require.NoError(t, os.WriteFile(cfg.Filters.Path, []byte(rules), 0644))
	}
	return cfg
}

func newsSession() *fakeSession {
	return &fakeSession{envelopes: map[engine.MessageID]engine.Envelope{
		1: {From: "news@example.com", Subject: "old"},
		2: {From: "friend@example.com", Subject: "hi"},
		3: {From: "news@example.com", Subject: "new"},
	}}
}

func connectTo(s *fakeSession, connects *int) Connector {
	return func(context.Context, *types.Config, *slog.Logger) (Session, error) {
		*connects++
		return s, nil
	}
}

func TestNewestFirst(t *testing.T) {
	in := []engine.MessageID{3, 10, 1, 7}
	assert.Equal(t, []engine.MessageID{10, 7, 3, 1}, NewestFirst(in))
	assert.Equal(t, []engine.MessageID{3, 10, 1, 7}, in)
}

func TestRunAppliesNewestFirst(t *testing.T) {
	session := newsSession()
	connects := 0
	a := New(testConfig(t, rulesYAML), discardLogger(), connectTo(session, &connects))

	summary, err := a.Run(context.Background(), types.RunParams{Folder: "Lists", Search: "unseen"})
	require.NoError(t, err)

	assert.Equal(t, 1, connects)
	assert.Equal(t, "Lists", session.selected)
	assert.True(t, session.criteria.Unseen)
	assert.Equal(t, []engine.MessageID{3, 2, 1}, session.fetched)
	assert.Equal(t, []engine.MessageID{3, 1}, session.moves)
	assert.Equal(t, 3, summary.Examined)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Moved)
	assert.True(t, session.closed)
}

func TestRunLimitKeepsNewest(t *testing.T) {
	session := newsSession()
	connects := 0
	a := New(testConfig(t, rulesYAML), discardLogger(), connectTo(session, &connects))

	summary, err := a.Run(context.Background(), types.RunParams{Folder: "INBOX", Limit: 2})
	require.NoError(t, err)

	assert.False(t, session.criteria.Unseen)
	assert.Equal(t, []engine.MessageID{3, 2}, session.fetched)
	assert.Equal(t, 1, summary.Moved)
}

func TestRunDryRunChangesNothing(t *testing.T) {
	session := newsSession()
	connects := 0
	a := New(testConfig(t, rulesYAML), discardLogger(), connectTo(session, &connects))

	summary, err := a.Run(context.Background(), types.RunParams{Folder: "INBOX", DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, session.moves)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Moved)
}

func TestRunWithoutRulesDoesNotConnect(t *testing.T) {
	connects := 0
	a := New(testConfig(t, ""), discardLogger(), connectTo(newsSession(), &connects))

	summary, err := a.Run(context.Background(), types.RunParams{Folder: "INBOX"})
	require.NoError(t, err)
	assert.Zero(t, connects)
	assert.Zero(t, summary.Processed)
}

func TestRunConnectFailure(t *testing.T) {
	boom := engine.ConnectionError(errors.New("refused"))
	a := New(testConfig(t, rulesYAML), discardLogger(), func(context.Context, *types.Config, *slog.Logger) (Session, error) {
		return nil, boom
	})

	_, err := a.Run(context.Background(), types.RunParams{Folder: "INBOX"})
	assert.ErrorIs(t, err, engine.ErrConnection)
}

func TestRunRecordsActionFailures(t *testing.T) {
	session := newsSession()
	session.moveErr = errors.New("over quota")
	connects := 0
	cfg := testConfig(t, rulesYAML)
	cfg.ErrorLog = types.ErrorLogConfig{Enabled: true, StoragePath: t.TempDir(), RetentionDays: 30}
	a := New(cfg, discardLogger(), connectTo(session, &connects))

	summary, err := a.Run(context.Background(), types.RunParams{Folder: "INBOX"})
	require.NoError(t, err)
	require.Len(t, summary.Errors, 2)

	manager, err := errorlog.NewManager(cfg, discardLogger())
	require.NoError(t, err)
	logged, err := manager.GetErrors(map[string]string{"rule": "Newsletters"})
	require.NoError(t, err)
	require.Len(t, logged, 2)
	assert.Equal(t, "INBOX", logged[0].Folder)
	assert.Equal(t, "over quota", logged[0].ErrorMsg)
}

func TestReloadRules(t *testing.T) {
	cfg := testConfig(t, "")
	a := New(cfg, discardLogger(), nil)
	assert.Empty(t, a.Rules())

	require.NoError(t, os.WriteFile(cfg.Filters.Path, []byte(rulesYAML), 0644))
	rules := a.ReloadRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "Newsletters", a.Rules()[0].Name)
}

func TestDescribe(t *testing.T) {
	cfg := &types.Config{}
	cfg.IMAP.Host = "imap.example.com"
	cfg.IMAP.Port = 993
	cfg.IMAP.Username = "jane"
	assert.Equal(t, "jane@imap.example.com:993", Describe(cfg))
}

func TestStartRequiresScheduling(t *testing.T) {
	connects := 0
	cfg := testConfig(t, rulesYAML)
	cfg.Scheduling = types.SchedulingConfig{FrequencyEvery: "hour", FrequencyAmount: 1}
	a := New(cfg, discardLogger(), connectTo(newsSession(), &connects))

	err := a.Start(context.Background(), types.RunParams{Folder: "INBOX"})
	assert.ErrorIs(t, err, ErrSchedulingDisabled)
	a.Stop()
	assert.Zero(t, connects)
}

func TestStartRunsImmediately(t *testing.T) {
	session := newsSession()
	connected := make(chan struct{}, 1)
	cfg := testConfig(t, rulesYAML)
	cfg.Scheduling = types.SchedulingConfig{Enabled: true, FrequencyEvery: "hour", FrequencyAmount: 1, StartNow: true}
	a := New(cfg, discardLogger(), func(context.Context, *types.Config, *slog.Logger) (Session, error) {
		select {
		case connected <- struct{}{}:
		default:
		}
		return session, nil
	})

	require.NoError(t, a.Start(context.Background(), types.RunParams{Folder: "INBOX", DryRun: true}))
	defer a.Stop()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not start")
	}
}
