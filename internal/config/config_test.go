package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `imap:
  host: imap.example.com
  username: jane@example.com
  password: ${TEST_IMAP_PASSWORD}
logging:
  level: DEBUG
filters:
  path: /tmp/filters.yaml
run:
  folder: Lists
  limit: 50
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_IMAP_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com", cfg.IMAP.Host)
	assert.Equal(t, "s3cret", cfg.IMAP.Password)
	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.True(t, cfg.IMAP.UseSSL)
	assert.True(t, cfg.IMAP.VerifyCert)
	assert.Equal(t, 30, cfg.IMAP.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "Lists", cfg.Run.Folder)
	assert.Equal(t, 50, cfg.Run.Limit)
	assert.Equal(t, "all", cfg.Run.Search)
	assert.Equal(t, "minute", cfg.Scheduling.FrequencyEvery)
	assert.Equal(t, 15, cfg.Scheduling.FrequencyAmount)
	assert.Equal(t, 30, cfg.ErrorLog.RetentionDays)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("IMAPMESSAGEFILTER_IMAP__PASSWORD", "from-env")
	t.Setenv("IMAPMESSAGEFILTER_IMAP__PORT", "1993")
	t.Setenv("IMAPMESSAGEFILTER_RUN__DRY_RUN", "true")

	cfg, err := Load(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.IMAP.Password)
	assert.Equal(t, 1993, cfg.IMAP.Port)
	assert.True(t, cfg.Run.DryRun)
}

func TestLoadBoundFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	v := viper.New()
	require.NoError(t, v.BindPFlag("logging.level", flags.Lookup("log-level")))

	// an unset flag does not override the file
	cfg, err := Load(writeConfig(t, sampleConfig), v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))
	cfg, err = Load(writeConfig(t, sampleConfig), v)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "imap: [unclosed"), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "imap.gmail.com", cfg.IMAP.Host)
	assert.Equal(t, "INBOX", cfg.Run.Folder)

	err = WriteDefault(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestResolveRun(t *testing.T) {
	cfg := &types.Config{Run: types.RunParams{Folder: "Lists", Limit: 5, DryRun: true}}

	params, err := ResolveRun(cfg)
	require.NoError(t, err)
	assert.Equal(t, types.RunParams{Folder: "Lists", Limit: 5, DryRun: true, Search: "all"}, params)

	params, err = ResolveRun(&types.Config{})
	require.NoError(t, err)
	assert.Equal(t, "INBOX", params.Folder)
}

func TestLoadRunFlagsOverrideConfig(t *testing.T) {
	content := sampleConfig + "  dry_run: true\n  rule: Newsletters\n"
	flags := pflag.NewFlagSet("apply", pflag.ContinueOnError)
	flags.Bool("dry-run", false, "")
	flags.Int("limit", 0, "")
	flags.String("rule", "", "")
	v := viper.New()
	require.NoError(t, v.BindPFlag("run.dry_run", flags.Lookup("dry-run")))
	require.NoError(t, v.BindPFlag("run.limit", flags.Lookup("limit")))
	require.NoError(t, v.BindPFlag("run.rule", flags.Lookup("rule")))

	require.NoError(t, flags.Parse([]string{"--dry-run=false", "--rule="}))
	cfg, err := Load(writeConfig(t, content), v)
	require.NoError(t, err)

	params, err := ResolveRun(cfg)
	require.NoError(t, err)
	assert.False(t, params.DryRun)
	assert.Empty(t, params.Rule)
	// unset flags keep the configured value
	assert.Equal(t, 50, params.Limit)
	assert.Equal(t, "Lists", params.Folder)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y"), ExpandHome("~/x/y"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filters: []\n"), 0644))

	fw, err := WatchFile(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("filters: []\n# changed\n"), 0644))

	select {
	case <-fw.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	require.NoError(t, fw.Stop())
	_, open := <-fw.Changes()
	for open {
		_, open = <-fw.Changes()
	}
}
