package main

import (
	"fmt"
	"io"

	"github.com/altafino/imap-message-filter/internal/app"
	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/logger"
	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shownErrors = 10

var cronMode bool

// runFlagKeys maps run flags to the config keys they override
var runFlagKeys = map[string]string{
	"folder":  "run.folder",
	"limit":   "run.limit",
	"dry-run": "run.dry_run",
	"rule":    "run.rule",
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the filters to a folder",
	Long: `Selects the folder, searches it, and runs every enabled filter over the
newest messages first. Use --dry-run to see what would happen.`,
	PreRunE: bindRunFlags,
	RunE:    apply,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Apply the filters periodically",
	Long: `Runs apply on the interval configured in the scheduling section until
interrupted. Changes to the filters file are picked up before the next run.`,
	PreRunE: bindRunFlags,
	RunE:    schedule,
}

func init() {
	for _, cmd := range []*cobra.Command{applyCmd, scheduleCmd} {
		cmd.Flags().String("folder", "", "folder to process (default from config, else INBOX)")
		cmd.Flags().Int("limit", 0, "process at most this many of the newest messages")
		cmd.Flags().Bool("dry-run", false, "show what would be done without changing anything")
		cmd.Flags().String("rule", "", "only run the filter with this name")
		cmd.Flags().Bool("unseen", false, "only consider unseen messages")
	}
	applyCmd.Flags().BoolVar(&cronMode, "cron", false, "log to the configured log file instead of the terminal")
}

// bindRunFlags binds the run flags of the command being executed. Only
// flags given on the command line override the config file.
func bindRunFlags(cmd *cobra.Command, args []string) error {
	for name, key := range runFlagKeys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func resolveRun(cmd *cobra.Command, cfg *types.Config) (types.RunParams, error) {
	if cmd.Flags().Changed("unseen") {
		unseen, err := cmd.Flags().GetBool("unseen")
		if err != nil {
			return types.RunParams{}, err
		}
		cfg.Run.Search = "all"
		if unseen {
			cfg.Run.Search = "unseen"
		}
	}
	return config.ResolveRun(cfg)
}

func apply(cmd *cobra.Command, args []string) error {
	mode := logger.Interactive
	if cronMode {
		mode = logger.Cron
	}

	cfg, closer, err := loadConfig(mode)
	if err != nil {
		return err
	}
	defer closer.Close()

	params, err := resolveRun(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a := app.New(cfg, log, app.ConnectIMAP)
	summary, runErr := a.Run(ctx, params)

	if cronMode {
		if summary != nil {
			log.Info("run finished",
				"folder", params.Folder,
				"dry_run", summary.DryRun,
				"processed", summary.Processed,
				"actions", summary.Actions(),
				"errors", len(summary.Errors),
			)
		}
	} else if summary != nil {
		printSummary(cmd.OutOrStdout(), params.Folder, summary)
	}

	if runErr != nil {
		log.Error("run aborted", "error", runErr)
		return runErr
	}
	return nil
}

func printSummary(out io.Writer, folder string, s *engine.RunSummary) {
	verb := ""
	if s.DryRun {
		verb = " (dry run, nothing was changed)"
	}
	fmt.Fprintf(out, "\nResults for %s%s\n", folder, verb)
	fmt.Fprintf(out, "  Messages examined:  %d\n", s.Examined)
	fmt.Fprintf(out, "  Messages processed: %d\n", s.Processed)
	fmt.Fprintf(out, "  Filter matches:     %d\n", s.Matched)
	fmt.Fprintf(out, "  Moved:              %d\n", s.Moved)
	fmt.Fprintf(out, "  Copied:             %d\n", s.Copied)
	fmt.Fprintf(out, "  Deleted:            %d\n", s.Deleted)
	fmt.Fprintf(out, "  Marked:             %d\n", s.Marked)

	if len(s.Errors) == 0 {
		return
	}
	fmt.Fprintf(out, "  Errors:             %d\n", len(s.Errors))
	for _, e := range s.FirstErrors(shownErrors) {
		fmt.Fprintf(out, "    %v\n", e)
	}
	if len(s.Errors) > shownErrors {
		fmt.Fprintf(out, "    ... and %d more\n", len(s.Errors)-shownErrors)
	}
}

func schedule(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(logger.Interactive)
	if err != nil {
		return err
	}
	defer closer.Close()

	params, err := resolveRun(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a := app.New(cfg, log, app.ConnectIMAP)
	if err := a.Start(ctx, params); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.Stop()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutting down scheduler")
	return nil
}
