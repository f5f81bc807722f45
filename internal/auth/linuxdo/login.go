package linuxdo

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

// Per-login CSRF state, round-tripped through a short-lived cookie.
const (
	stateCookie    = "oauth_state"
	stateCookieTTL = 600 // seconds
)

func newStateToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func callbackURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/oauth/callback"
}

// HandleLogin mints a fresh state token, stores it in a cookie, and
// redirects the browser to the provider's consent page.
func HandleLogin(clientKey, clientSecret, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := newStateToken()
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   stateCookieTTL,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		config := OAuthConfig(clientKey, clientSecret, callbackURL(baseURL))
		http.Redirect(w, r, config.AuthCodeURL(state), http.StatusTemporaryRedirect)
	}
}
