package linuxdo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/formzs/poe-to-gpt/internal/db"
)

type userInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

// HandleCallback finishes the OAuth flow: exchanges the code, fetches the
// provider profile, and creates or refreshes the local account. First
// logins get a fresh API key shown on the success page.
func HandleCallback(database *gorm.DB, clientKey, clientSecret, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(stateCookie)
		if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
			http.Error(w, "invalid state token", http.StatusBadRequest)
			return
		}
		// One round-trip per state token.
		http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}

		config := OAuthConfig(clientKey, clientSecret, callbackURL(baseURL))
		token, err := config.Exchange(r.Context(), code)
		if err != nil {
			logrus.WithError(err).Error("oauth code exchange failed")
			http.Error(w, "authorization failed", http.StatusBadRequest)
			return
		}

		client := config.Client(r.Context(), token)
		resp, err := client.Get(userInfoURL)
		if err != nil {
			logrus.WithError(err).Error("userinfo fetch failed")
			http.Error(w, "failed to fetch user info", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			http.Error(w, "failed to fetch user info", http.StatusBadGateway)
			return
		}
		var info userInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			http.Error(w, "failed to decode user info", http.StatusBadGateway)
			return
		}
		if info.Username == "" {
			http.Error(w, "provider returned no username", http.StatusBadGateway)
			return
		}

		log := logrus.WithField("username", info.Username)

		// Known token: plain re-login.
		if _, err := db.GetUserByExternalToken(database, token.AccessToken); err == nil {
			log.Info("user logged in")
			http.Redirect(w, r, successURL(baseURL, ""), http.StatusTemporaryRedirect)
			return
		}

		// Known account with a rotated provider token.
		if existing, err := db.GetUserByUsername(database, info.Username); err == nil {
			if err := db.UpdateExternalToken(database, existing.UserID, token.AccessToken); err != nil {
				log.WithError(err).Error("token refresh failed")
				http.Error(w, "login failed", http.StatusInternalServerError)
				return
			}
			log.Info("user logged in, provider token refreshed")
			http.Redirect(w, r, successURL(baseURL, ""), http.StatusTemporaryRedirect)
			return
		} else if !errors.Is(err, db.ErrUserNotFound) {
			log.WithError(err).Error("account lookup failed")
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}

		apiKey := db.NewAPIKey()
		user, err := db.CreateUser(database, apiKey, info.Username, token.AccessToken)
		if err != nil {
			log.WithError(err).Error("account creation failed")
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		log.WithField("user_id", user.UserID).Info("new user registered")
		http.Redirect(w, r, successURL(baseURL, apiKey), http.StatusTemporaryRedirect)
	}
}

func successURL(baseURL, apiKey string) string {
	target := strings.TrimRight(baseURL, "/") + "/login/success"
	if apiKey != "" {
		target += "?api_key=" + url.QueryEscape(apiKey)
	}
	return target
}

// HandleLoginSuccess renders the post-login page, showing the freshly
// minted key when present.
func HandleLoginSuccess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if apiKey := r.URL.Query().Get("api_key"); apiKey != "" {
			fmt.Fprintf(w, "Login Success! Your API key is: %s\n", apiKey)
			return
		}
		fmt.Fprintln(w, "Login Success!")
	}
}
