// Package linuxdo implements login via the LinuxDO Connect OAuth
// provider and liveness checks for stored provider tokens.
package linuxdo

import (
	"golang.org/x/oauth2"
)

const (
	authURL     = "https://connect.linux.do/oauth2/authorize"
	tokenURL    = "https://connect.linux.do/oauth2/token"
	userInfoURL = "https://connect.linux.do/api/user"
)

// Scopes requested on login.
var scopes = []string{"openid", "profile", "email"}

// OAuthConfig builds the oauth2 client config for this deployment.
func OAuthConfig(clientKey, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientKey,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}
