package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/errorlog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command and resets the flags it touched
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
	viper.Reset()
	return out.String(), err
}

func writeErrorLogConfig(t *testing.T, enabled bool) (string, string) {
	t.Helper()
	dir := t.TempDir()
	storage := filepath.Join(dir, "errors")
	content := fmt.Sprintf(`imap:
  host: imap.example.com
  username: jane
  password: secret
error_log:
  enabled: %t
  storage_path: %s
`, enabled, storage)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path, storage
}

func TestErrorsCommandFilters(t *testing.T) {
	path, _ := writeErrorLogConfig(t, true)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	manager, err := errorlog.NewManager(cfg, log)
	require.NoError(t, err)
	when := time.Now().UTC()
	_, err = manager.LogRun("INBOX", &engine.RunSummary{Errors: []engine.ActionError{
		{MessageID: 7, Rule: "News", Action: "move to News", Err: errors.New("over quota"), Time: when},
		{MessageID: 9, Rule: "Junk", Action: "delete", Err: errors.New("read only"), Time: when},
	}})
	require.NoError(t, err)
	require.NoError(t, manager.Close())

	out, err := execute(t, "--config", path, "errors", "--rule", "News")
	require.NoError(t, err)
	assert.Contains(t, out, "over quota")
	assert.NotContains(t, out, "read only")

	out, err = execute(t, "--config", path, "errors", "--message-id", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "read only")
	assert.NotContains(t, out, "over quota")

	out, err = execute(t, "--config", path, "errors", "--folder", "Archive")
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded failures")
}

func TestErrorsCommandDisabled(t *testing.T) {
	path, _ := writeErrorLogConfig(t, false)

	out, err := execute(t, "--config", path, "errors")
	require.NoError(t, err)
	assert.Contains(t, out, "Error log is disabled")
}
