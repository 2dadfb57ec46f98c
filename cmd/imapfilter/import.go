package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/altafino/imap-message-filter/internal/filter"
	"github.com/altafino/imap-message-filter/internal/legacy"
	"github.com/spf13/cobra"
)

var (
	importProfile string
	importOutput  string
)

var importThunderbirdCmd = &cobra.Command{
	Use:   "import-thunderbird",
	Short: "Convert Thunderbird message filters into a filters file",
	Long: `Reads msgFilterRules.dat from a Thunderbird profile and writes the filters
it can express as a filters document. Without --profile every profile in the
default Thunderbird directory is read.`,
	RunE: importThunderbird,
}

func init() {
	importThunderbirdCmd.Flags().StringVar(&importProfile, "profile", "", "Thunderbird profile directory")
	importThunderbirdCmd.Flags().StringVar(&importOutput, "output", "", "file to write, stdout when empty")
}

func importThunderbird(cmd *cobra.Command, args []string) error {
	profiles := []string{importProfile}
	if importProfile == "" {
		found, err := legacy.FindProfiles(legacy.DefaultProfilesDir())
		if err != nil {
			return fmt.Errorf("failed to find Thunderbird profiles: %w", err)
		}
		if len(found) == 0 {
			return fmt.Errorf("no Thunderbird profiles found in %s", legacy.DefaultProfilesDir())
		}
		profiles = found
	}

	var doc filter.Document
	for _, profile := range profiles {
		part, err := legacy.ImportProfile(profile, log)
		if err != nil {
			return err
		}
		doc.Filters = append(doc.Filters, part.Filters...)
	}

	if _, err := filter.Build(doc); err != nil {
		log.Warn("imported filters need manual fixes", "error", err)
	}

	data, err := filter.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode filters: %w", err)
	}

	if importOutput == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(importOutput), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(importOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", importOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d filters to %s\n", len(doc.Filters), importOutput)
	return nil
}
