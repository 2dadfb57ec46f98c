package oauth2

import (
	"context"
	"fmt"

	"github.com/altafino/imap-message-filter/internal/types"
	"golang.org/x/oauth2"
)

// TokenSource returns a source of IMAP access tokens. A configured static
// access token is used as is, otherwise the refresh token is exchanged at
// the provider's endpoint whenever the current token expires.
func TokenSource(ctx context.Context, cfg types.OAuth2Config) (oauth2.TokenSource, error) {
	if cfg.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}), nil
	}
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	conf, err := ProviderConfig(cfg.Provider, cfg.ClientID, cfg.ClientSecret, "")
	if err != nil {
		return nil, err
	}

	return oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	})), nil
}

// AccessToken fetches a currently valid access token
func AccessToken(ctx context.Context, cfg types.OAuth2Config) (string, error) {
	src, err := TokenSource(ctx, cfg)
	if err != nil {
		return "", err
	}
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	return token.AccessToken, nil
}
