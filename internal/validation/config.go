package validation

import (
	"fmt"
	"path/filepath"

	"github.com/altafino/imap-message-filter/internal/oauth2"
	"github.com/altafino/imap-message-filter/internal/types"
)

// ValidateConfig performs validation on a loaded configuration
func ValidateConfig(cfg *types.Config) error {
	if err := validateIMAP(cfg); err != nil {
		return fmt.Errorf("imap validation failed: %w", err)
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	if err := validateRun(cfg); err != nil {
		return fmt.Errorf("run validation failed: %w", err)
	}

	if err := validateScheduling(cfg); err != nil {
		return fmt.Errorf("scheduling validation failed: %w", err)
	}

	if err := validateErrorLog(cfg); err != nil {
		return fmt.Errorf("error_log validation failed: %w", err)
	}

	return nil
}

func validateIMAP(cfg *types.Config) error {
	if cfg.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}

	if cfg.IMAP.Port <= 0 || cfg.IMAP.Port > 65535 {
		return fmt.Errorf("imap.port must be between 1 and 65535")
	}

	if cfg.IMAP.Username == "" {
		return fmt.Errorf("imap.username is required")
	}

	if cfg.IMAP.UseSSL && cfg.IMAP.UseStartTLS {
		return fmt.Errorf("imap.use_ssl and imap.use_starttls are mutually exclusive")
	}

	if cfg.IMAP.Timeout <= 0 {
		return fmt.Errorf("imap.timeout must be positive")
	}

	if !cfg.IMAP.OAuth2.Enabled {
		if cfg.IMAP.Password == "" {
			return fmt.Errorf("imap.password is required unless oauth2 is enabled")
		}
		return nil
	}

	return validateOAuth2(cfg)
}

func validateOAuth2(cfg *types.Config) error {
	o := cfg.IMAP.OAuth2

	// a static access token needs nothing else
	if o.AccessToken != "" {
		return nil
	}

	if _, err := oauth2.Endpoint(o.Provider); err != nil {
		return fmt.Errorf("imap.oauth2.provider: %w", err)
	}

	if o.ClientID == "" {
		return fmt.Errorf("imap.oauth2.client_id is required")
	}

	if o.RefreshToken == "" {
		return fmt.Errorf("imap.oauth2.refresh_token or imap.oauth2.access_token is required")
	}

	return nil
}

func validateLogging(cfg *types.Config) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"text":   true,
		"json":   true,
		"pretty": true,
	}

	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: text, json, pretty")
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"file":   true,
	}

	if !validOutputs[cfg.Logging.Output] {
		return fmt.Errorf("logging.output must be one of: stdout, file")
	}

	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output is 'file'")
	}

	return nil
}

func validateRun(cfg *types.Config) error {
	if cfg.Run.Folder == "" {
		return fmt.Errorf("run.folder must not be empty")
	}

	if cfg.Run.Limit < 0 {
		return fmt.Errorf("run.limit must not be negative")
	}

	switch cfg.Run.Search {
	case "all", "unseen":
	default:
		return fmt.Errorf("run.search must be 'all' or 'unseen'")
	}

	if cfg.Filters.Path == "" {
		return fmt.Errorf("filters.path is required")
	}

	return nil
}

func validateScheduling(cfg *types.Config) error {
	if !cfg.Scheduling.Enabled {
		return nil // Skip validation if scheduling is disabled
	}

	validFrequencies := map[string]bool{
		"minute": true,
		"hour":   true,
		"day":    true,
		"week":   true,
	}

	if !validFrequencies[cfg.Scheduling.FrequencyEvery] {
		return fmt.Errorf("scheduling.frequency_every must be one of: minute, hour, day, week")
	}

	if cfg.Scheduling.FrequencyAmount < 1 {
		return fmt.Errorf("scheduling.frequency_amount must be greater than 0")
	}

	switch cfg.Scheduling.FrequencyEvery {
	case "minute":
		if cfg.Scheduling.FrequencyAmount > 60 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 60 for minute frequency")
		}
	case "hour":
		if cfg.Scheduling.FrequencyAmount > 24 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 24 for hour frequency")
		}
	case "day":
		if cfg.Scheduling.FrequencyAmount > 31 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 31 for day frequency")
		}
	case "week":
		if cfg.Scheduling.FrequencyAmount > 52 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 52 for week frequency")
		}
	}

	return nil
}

func validateErrorLog(cfg *types.Config) error {
	if !cfg.ErrorLog.Enabled {
		return nil
	}

	if cfg.ErrorLog.StoragePath == "" {
		return fmt.Errorf("error_log.storage_path is required when enabled")
	}

	if !filepath.IsAbs(cfg.ErrorLog.StoragePath) {
		return fmt.Errorf("error_log.storage_path must be absolute")
	}

	if cfg.ErrorLog.RetentionDays < 0 {
		return fmt.Errorf("error_log.retention_days must not be negative")
	}

	return nil
}
