package types

// Config represents the application configuration
type Config struct {
	IMAP       IMAPConfig       `yaml:"imap" mapstructure:"imap"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Filters    FiltersConfig    `yaml:"filters" mapstructure:"filters"`
	Run        RunParams        `yaml:"run" mapstructure:"run"`
	Scheduling SchedulingConfig `yaml:"scheduling" mapstructure:"scheduling"`
	ErrorLog   ErrorLogConfig   `yaml:"error_log" mapstructure:"error_log"`
}

// RunParams are the per-invocation parameters of a filter run
type RunParams struct {
	Folder string `yaml:"folder" mapstructure:"folder"`
	Limit  int    `yaml:"limit" mapstructure:"limit"`
	DryRun bool   `yaml:"dry_run" mapstructure:"dry_run"`
	Search string `yaml:"search" mapstructure:"search"` // all, unseen
	Rule   string `yaml:"rule,omitempty" mapstructure:"rule"`
}

// IMAPConfig holds the server connection settings
type IMAPConfig struct {
	Host          string       `yaml:"host" mapstructure:"host"`
	Port          int          `yaml:"port" mapstructure:"port"`
	Username      string       `yaml:"username" mapstructure:"username"`
	Password      string       `yaml:"password" mapstructure:"password"`
	UseSSL        bool         `yaml:"use_ssl" mapstructure:"use_ssl"`
	UseStartTLS   bool         `yaml:"use_starttls" mapstructure:"use_starttls"`
	AllowInsecure bool         `yaml:"allow_insecure" mapstructure:"allow_insecure"` // continue in plain text if STARTTLS fails
	VerifyCert    bool         `yaml:"verify_cert" mapstructure:"verify_cert"`
	Timeout       int          `yaml:"timeout" mapstructure:"timeout"` // seconds
	OAuth2        OAuth2Config `yaml:"oauth2" mapstructure:"oauth2"`
}

// OAuth2Config holds XOAUTH2 credentials for the IMAP login
type OAuth2Config struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	Provider     string `yaml:"provider" mapstructure:"provider"` // google, microsoft
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken string `yaml:"refresh_token" mapstructure:"refresh_token"`
	AccessToken  string `yaml:"access_token,omitempty" mapstructure:"access_token"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level         string `yaml:"level" mapstructure:"level"`
	Format        string `yaml:"format" mapstructure:"format"` // text, json, pretty
	Output        string `yaml:"output" mapstructure:"output"` // stdout, file
	FilePath      string `yaml:"file_path,omitempty" mapstructure:"file_path"`
	IncludeCaller bool   `yaml:"include_caller" mapstructure:"include_caller"`
}

// FiltersConfig points at the rules file
type FiltersConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	FetchBody bool   `yaml:"fetch_body" mapstructure:"fetch_body"`
}

// SchedulingConfig configures periodic runs
type SchedulingConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	FrequencyEvery  string `yaml:"frequency_every" mapstructure:"frequency_every"` // minute, hour, day, week
	FrequencyAmount int    `yaml:"frequency_amount" mapstructure:"frequency_amount"`
	StartNow        bool   `yaml:"start_now" mapstructure:"start_now"`
}

// ErrorLogConfig configures the JSON error sink
type ErrorLogConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	StoragePath   string `yaml:"storage_path" mapstructure:"storage_path"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
}
