package oauth

import (
	"strings"

	"golang.org/x/oauth2"

	"github.com/axdashboard/axdash/internal/pkg/env"
)

const (
	DefaultAuthURL     = "https://marketplace.gohighlevel.com/oauth/chooselocation"
	DefaultTokenURL    = "https://services.leadconnectorhq.com/oauth/token"
	DefaultRedirectURL = "https://api.axdashboard.com/auth/callback"
	DefaultScopes      = "opportunities.readonly"
)

// NewConfigFromEnv builds the OAuth2 client configuration for the CRM marketplace app.
// The provider expects client credentials in the form body.
func NewConfigFromEnv() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     env.GetEnv("GHL_CLIENT_ID", ""),
		ClientSecret: env.GetEnv("GHL_CLIENT_SECRET", ""),
		RedirectURL:  env.GetEnv("GHL_REDIRECT_URI", DefaultRedirectURL),
		Scopes:       strings.Fields(env.GetEnv("GHL_SCOPES", DefaultScopes)),
		Endpoint: oauth2.Endpoint{
			AuthURL:   env.GetEnv("GHL_AUTH_URL", DefaultAuthURL),
			TokenURL:  env.GetEnv("GHL_TOKEN_URL", DefaultTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
