package main

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/errorlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	errorsRule      string
	errorsFolder    string
	errorsAction    string
	errorsMessageID uint32
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List recorded action failures",
	Long: `Lists the failed filter actions recorded in the error log. Filters
combine, a failure is shown only when it matches all of them.`,
	RunE: listErrors,
}

func init() {
	errorsCmd.Flags().StringVar(&errorsRule, "rule", "", "only failures of this filter")
	errorsCmd.Flags().StringVar(&errorsFolder, "folder", "", "only failures in this folder")
	errorsCmd.Flags().StringVar(&errorsAction, "action", "", `only failures of this action, e.g. "move to News"`)
	errorsCmd.Flags().Uint32Var(&errorsMessageID, "message-id", 0, "only failures for this message UID")
}

func listErrors(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, viper.GetViper())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !cfg.ErrorLog.Enabled {
		fmt.Fprintln(out, "Error log is disabled, set error_log.enabled to record failures")
		return nil
	}

	manager, err := errorlog.NewManager(cfg, log)
	if err != nil {
		return err
	}
	defer manager.Close()

	filters := map[string]string{}
	if errorsRule != "" {
		filters["rule"] = errorsRule
	}
	if errorsFolder != "" {
		filters["folder"] = errorsFolder
	}
	if errorsAction != "" {
		filters["action"] = errorsAction
	}
	if cmd.Flags().Changed("message-id") {
		filters["message_id"] = strconv.FormatUint(uint64(errorsMessageID), 10)
	}

	failures, err := manager.GetErrors(filters)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		fmt.Fprintln(out, "No recorded failures")
		return nil
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].ErrorTime.Before(failures[j].ErrorTime)
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tFOLDER\tUID\tRULE\tACTION\tERROR")
	for _, f := range failures {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			f.ErrorTime.Local().Format(time.DateTime), f.Folder, f.MessageID, f.Rule, f.Action, f.ErrorMsg)
	}
	return tw.Flush()
}
