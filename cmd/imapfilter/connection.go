package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/altafino/imap-message-filter/internal/app"
	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/logger"
	"github.com/spf13/cobra"
)

var (
	listFolder string
	listLimit  int
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Connect, authenticate and list folders",
	RunE:  testConnection,
}

var listFoldersCmd = &cobra.Command{
	Use:   "list-folders",
	Short: "List the folders of the mailbox",
	RunE:  listFolders,
}

var listMessagesCmd = &cobra.Command{
	Use:   "list-messages",
	Short: "List the newest messages of a folder",
	RunE:  listMessages,
}

func init() {
	listMessagesCmd.Flags().StringVar(&listFolder, "folder", "INBOX", "folder to list")
	listMessagesCmd.Flags().IntVar(&listLimit, "limit", 10, "number of messages to show, 0 for all")
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func testConnection(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(logger.Interactive)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connecting to %s...\n", app.Describe(cfg))

	session, err := app.ConnectIMAP(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer session.Close()

	folders, err := session.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}

	fmt.Fprintf(out, "Connection successful, %d folders found\n", len(folders))
	return nil
}

func listFolders(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(logger.Interactive)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signalContext()
	defer cancel()

	session, err := app.ConnectIMAP(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer session.Close()

	folders, err := session.ListFolders(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range folders {
		fmt.Fprintln(out, name)
	}
	return nil
}

func listMessages(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(logger.Interactive)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signalContext()
	defer cancel()

	session, err := app.ConnectIMAP(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer session.Close()

	status, err := session.SelectFolder(ctx, listFolder)
	if err != nil {
		return err
	}

	ids, err := session.Search(ctx, engine.SearchCriteria{})
	if err != nil {
		return err
	}
	ids = app.NewestFirst(ids)
	if listLimit > 0 && len(ids) > listLimit {
		ids = ids[:listLimit]
	}

	envelopes, err := session.FetchEnvelopes(ctx, ids)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d messages, showing %d\n\n", status.Name, status.Total, len(ids))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFROM\tSUBJECT\tDATE")
	for _, id := range ids {
		env, ok := envelopes[id]
		if !ok {
			continue
		}
		date := ""
		if !env.Date.IsZero() {
			date = env.Date.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", id, truncate(env.From, 40), truncate(env.Subject, 60), date)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
