package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/legacy"
	"github.com/spf13/cobra"
)

const passwordPlaceholder = "${IMAP_PASSWORD}"

var (
	accountProfile string
	accountIndex   int
	accountEmail   string
	accountList    bool
)

var importThunderbirdConfigCmd = &cobra.Command{
	Use:   "import-thunderbird-config",
	Short: "Create a configuration file from a Thunderbird IMAP account",
	Long: `Reads the IMAP accounts from prefs.js of a Thunderbird profile and writes a
configuration file for one of them. Passwords are not stored by Thunderbird in
prefs.js, the written file reads it from $IMAP_PASSWORD. With --email the
settings of a common provider are used when Thunderbird has no account.`,
	RunE: importThunderbirdConfig,
}

func init() {
	importThunderbirdConfigCmd.Flags().StringVar(&accountProfile, "profile", "", "Thunderbird profile directory")
	importThunderbirdConfigCmd.Flags().IntVar(&accountIndex, "account", 1, "number of the account to import, see --list")
	importThunderbirdConfigCmd.Flags().StringVar(&accountEmail, "email", "", "address to look up among common providers")
	importThunderbirdConfigCmd.Flags().BoolVar(&accountList, "list", false, "list the accounts found and exit")
}

func importThunderbirdConfig(cmd *cobra.Command, args []string) error {
	profiles := []string{accountProfile}
	if accountProfile == "" {
		found, err := legacy.FindProfiles(legacy.DefaultProfilesDir())
		if err != nil {
			log.Warn("no Thunderbird profiles directory", "error", err)
		}
		profiles = found
	}

	var accounts []legacy.Account
	for _, profile := range profiles {
		part, err := legacy.ImportAccounts(profile, log)
		if err != nil {
			return err
		}
		accounts = append(accounts, part...)
	}

	if len(accounts) == 0 && accountEmail != "" {
		known, ok := legacy.KnownServer(accountEmail)
		if !ok {
			return fmt.Errorf("no Thunderbird IMAP account found and %s is not a known provider (%s)",
				accountEmail, strings.Join(legacy.KnownDomains(), ", "))
		}
		accounts = append(accounts, known)
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no Thunderbird IMAP account found, pass --profile or --email")
	}

	out := cmd.OutOrStdout()
	if accountList {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tUSER\tHOST\tPORT\tSECURITY")
		for i, a := range accounts {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, a.Username, a.Host, a.Port, a.Security())
		}
		return tw.Flush()
	}

	if accountIndex < 1 || accountIndex > len(accounts) {
		return fmt.Errorf("account %d does not exist, %d found", accountIndex, len(accounts))
	}
	account := accounts[accountIndex-1]

	cfg := config.Default()
	account.Apply(&cfg.IMAP)
	cfg.IMAP.Password = passwordPlaceholder
	if cfg.IMAP.OAuth2.Enabled {
		cfg.IMAP.Password = ""
	}

	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.Write(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration for %s on %s written to %s\n", account.Username, account.Host, path)
	if cfg.IMAP.OAuth2.Enabled {
		fmt.Fprintln(out, "The account uses OAuth2, add client_id and run oauth2-authorize.")
	} else {
		fmt.Fprintln(out, "Set IMAP_PASSWORD or edit the password before running apply.")
	}
	return nil
}
