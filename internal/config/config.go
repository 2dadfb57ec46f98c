package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to environment overrides, nested keys are joined
// with "__" (IMAPMESSAGEFILTER_IMAP__PASSWORD)
const EnvPrefix = "IMAPMESSAGEFILTER"

// ErrNotFound is returned when the configuration file does not exist
var ErrNotFound = errors.New("configuration file not found")

var defaults = map[string]any{
	"imap.host":                   "",
	"imap.port":                   993,
	"imap.username":               "",
	"imap.password":               "",
	"imap.use_ssl":                true,
	"imap.use_starttls":           false,
	"imap.allow_insecure":         false,
	"imap.verify_cert":            true,
	"imap.timeout":                30,
	"imap.oauth2.enabled":         false,
	"imap.oauth2.provider":        "",
	"imap.oauth2.client_id":       "",
	"imap.oauth2.client_secret":   "",
	"imap.oauth2.refresh_token":   "",
	"imap.oauth2.access_token":    "",
	"logging.level":               "info",
	"logging.format":              "text",
	"logging.output":              "stdout",
	"logging.file_path":           "",
	"logging.include_caller":      false,
	"filters.path":                "~/.config/IMAPMessageFilter/filters.yaml",
	"filters.fetch_body":          false,
	"run.folder":                  "INBOX",
	"run.limit":                   0,
	"run.dry_run":                 false,
	"run.search":                  "all",
	"run.rule":                    "",
	"scheduling.enabled":          false,
	"scheduling.frequency_every":  "minute",
	"scheduling.frequency_amount": 15,
	"scheduling.start_now":        true,
	"error_log.enabled":           false,
	"error_log.storage_path":      "~/.config/IMAPMessageFilter/errors",
	"error_log.retention_days":    30,
}

// SetDefaults registers every configuration key on v so that environment
// overrides are picked up for all of them
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// DefaultPath returns the default configuration file location
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "IMAPMessageFilter", "config.yaml")
	}
	return filepath.Join(home, ".config", "IMAPMessageFilter", "config.yaml")
}

// Load reads the configuration file at path (DefaultPath when empty),
// expands ${VAR} references, applies environment overrides and any flags
// already bound on v. A nil v uses a fresh viper instance.
func Load(path string, v *viper.Viper) (*types.Config, error) {
	if v == nil {
		v = viper.New()
	}
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (create it with setup-config or pass --config)", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	SetDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := &types.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	normalize(cfg)
	return cfg, nil
}

func normalize(cfg *types.Config) {
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	cfg.Logging.Output = strings.ToLower(cfg.Logging.Output)
	cfg.Run.Search = strings.ToLower(cfg.Run.Search)
	cfg.Filters.Path = ExpandHome(cfg.Filters.Path)
	cfg.ErrorLog.StoragePath = ExpandHome(cfg.ErrorLog.StoragePath)
	cfg.Logging.FilePath = ExpandHome(cfg.Logging.FilePath)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Default returns the configuration built from defaults alone, with
// placeholder credentials for setup-config
func Default() *types.Config {
	v := viper.New()
	SetDefaults(v)

	cfg := &types.Config{}
	// defaults only contain plain values, decoding cannot fail
	_ = v.Unmarshal(cfg)

	cfg.IMAP.Host = "imap.gmail.com"
	cfg.IMAP.Username = "your-email@gmail.com"
	cfg.IMAP.Password = "your-app-password"
	return cfg
}

// WriteDefault writes Default() to path. An existing file is never
// overwritten.
func WriteDefault(path string) error {
	return Write(path, Default())
}

// Write encodes cfg as YAML to path, refusing to replace an existing file
func Write(path string, cfg *types.Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var runDefaults = types.RunParams{Folder: "INBOX", Search: "all"}

// ResolveRun returns the run parameters of cfg with empty fields filled
// from the built-in defaults. Command line flags reach cfg.Run through the
// viper bindings, so an explicit --dry-run=false beats run.dry_run: true.
func ResolveRun(cfg *types.Config) (types.RunParams, error) {
	params := cfg.Run
	if err := mergo.Merge(&params, runDefaults); err != nil {
		return types.RunParams{}, fmt.Errorf("failed to merge run parameters: %w", err)
	}
	return params, nil
}
