package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/filter"
	"github.com/altafino/imap-message-filter/internal/validation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var setupConfigCmd = &cobra.Command{
	Use:   "setup-config",
	Short: "Write a default configuration file",
	RunE:  setupConfig,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the loaded filters and whether they are valid",
	RunE:  status,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the filters file",
	RunE:  validate,
}

func setupConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\nEdit it with your IMAP credentials before running apply.\n", path)
	return nil
}

func status(cmd *cobra.Command, args []string) error {
	path, err := loadRulesPath()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Filters file: %s\n", path)

	rules, err := filter.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(out, "Filters file not found, no filters loaded")
			return nil
		}
		fmt.Fprintf(out, "Filters file is invalid, no filters loaded:\n%v\n", err)
		return nil
	}

	summary := filter.Summarize(rules)
	fmt.Fprintf(out, "Total filters: %d\nEnabled filters: %d\n\n", summary.Total, summary.Enabled)
	for _, r := range summary.Rules {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(out, "  %-30s priority %-3d %d conditions, %d actions (%s)\n",
			r.Name, r.Priority, r.ConditionCount, r.ActionCount, state)
	}

	if errs := filter.Validate(rules); len(errs) > 0 {
		fmt.Fprintf(out, "\nValidation errors:\n%v\n", errs)
	} else {
		fmt.Fprintln(out, "\nAll filters are valid")
	}
	return nil
}

func validate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false

	cfg, err := config.Load(cfgFile, viper.GetViper())
	if err != nil {
		return err
	}
	if err := validation.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(out, "Configuration: %v\n", err)
		failed = true
	} else {
		fmt.Fprintln(out, "Configuration: ok")
	}

	rules, err := filter.ReadFile(cfg.Filters.Path)
	var verrs filter.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fmt.Fprintf(out, "Filters: %d invalid\n", len(verrs))
		for _, e := range verrs {
			fmt.Fprintf(out, "  %v\n", e)
		}
		failed = true
	case err != nil:
		fmt.Fprintf(out, "Filters: %v\n", err)
		failed = true
	default:
		fmt.Fprintf(out, "Filters: %d ok (%d enabled)\n", len(rules), rules.Enabled())
	}

	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}
