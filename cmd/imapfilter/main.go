package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/filter"
	"github.com/altafino/imap-message-filter/internal/logger"
	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/altafino/imap-message-filter/internal/validation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	log       *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "imapfilter",
	Short: "Rule-based IMAP message filter",
	Long: `Applies user-defined filter rules to the messages of an IMAP folder,
moving, copying, deleting or flagging the messages that match.`,
	SilenceUsage: true,
}

func init() {
	// Setup default logger until we load config
	log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/IMAPMessageFilter/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging format (text, json, pretty)")

	// Bind flags to viper
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(
		testConnectionCmd,
		listFoldersCmd,
		listMessagesCmd,
		setupConfigCmd,
		statusCmd,
		validateCmd,
		applyCmd,
		scheduleCmd,
		errorsCmd,
		importThunderbirdCmd,
		importThunderbirdConfigCmd,
		oauth2AuthorizeCmd,
	)
}

// loadConfig reads and validates the config file and replaces the default
// logger with the configured one. The closer must be closed on exit.
func loadConfig(mode logger.Mode) (*types.Config, io.Closer, error) {
	cfg, err := config.Load(cfgFile, viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, closer, err := logger.Setup(cfg, mode)
	if err != nil {
		return nil, nil, err
	}
	log = l
	slog.SetDefault(log)
	return cfg, closer, nil
}

// loadRulesPath returns the configured rules file path without requiring
// the rest of the config to be valid
func loadRulesPath() (string, error) {
	cfg, err := config.Load(cfgFile, viper.GetViper())
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			log.Warn("no config file, using default filters path", "error", err)
			return filter.DefaultPath(), nil
		}
		return "", err
	}
	return cfg.Filters.Path, nil
}
