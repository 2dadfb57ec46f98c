package main

import (
	"fmt"

	"github.com/altafino/imap-message-filter/internal/config"
	"github.com/altafino/imap-message-filter/internal/oauth2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	goauth2 "golang.org/x/oauth2"
)

const callbackAddr = "localhost:8085"

var oauth2AuthorizeCmd = &cobra.Command{
	Use:   "oauth2-authorize",
	Short: "Obtain an OAuth2 refresh token for the configured account",
	Long: `Runs the provider consent flow against a local callback server and
prints the refresh token to put into imap.oauth2.refresh_token.`,
	RunE: authorizeOAuth2,
}

func authorizeOAuth2(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, viper.GetViper())
	if err != nil {
		return err
	}

	o := cfg.IMAP.OAuth2
	if o.ClientID == "" {
		return fmt.Errorf("imap.oauth2.client_id is required")
	}

	oauth2Config, err := oauth2.ProviderConfig(o.Provider, o.ClientID, o.ClientSecret,
		"http://"+callbackAddr+oauth2.CallbackPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	authURL := oauth2Config.AuthCodeURL("state", goauth2.AccessTypeOffline, goauth2.ApprovalForce)
	fmt.Fprintf(out, "Please open the following URL in your browser:\n\n%s\n\n", authURL)
	fmt.Fprintln(out, "Waiting for authentication...")

	ctx, cancel := signalContext()
	defer cancel()

	code, err := oauth2.WaitForCode(ctx, callbackAddr, log)
	if err != nil {
		return fmt.Errorf("failed to get authorization code: %w", err)
	}

	fmt.Fprintln(out, "Authorization code received, exchanging for token...")

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code for token: %w", err)
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("provider returned no refresh token")
	}

	fmt.Fprintf(out, "\nRefresh token:\n\n%s\n\nSet it as imap.oauth2.refresh_token (or %s_IMAP__OAUTH2__REFRESH_TOKEN).\n",
		token.RefreshToken, config.EnvPrefix)
	return nil
}
