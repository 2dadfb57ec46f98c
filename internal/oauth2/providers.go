package oauth2

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

var scopes = map[string][]string{
	"google": {
		"https://mail.google.com/",
	},
	"microsoft": {
		"https://outlook.office.com/IMAP.AccessAsUser.All",
		"offline_access",
	},
}

// Endpoint returns the token endpoint of a supported provider
func Endpoint(provider string) (oauth2.Endpoint, error) {
	switch strings.ToLower(provider) {
	case "google":
		return google.Endpoint, nil
	case "microsoft":
		return microsoft.AzureADEndpoint("common"), nil
	default:
		return oauth2.Endpoint{}, fmt.Errorf("unsupported OAuth2 provider: %q", provider)
	}
}

// ProviderConfig returns the OAuth2 config for a specific provider
func ProviderConfig(provider, clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	endpoint, err := Endpoint(provider)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes[strings.ToLower(provider)],
		Endpoint:     endpoint,
	}, nil
}
