// Package middleware implements the authorization gatekeeper composed in
// front of the chat and admin routes.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/formzs/poe-to-gpt/internal/db"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Identity is the resolved caller placed in the request context.
type Identity struct {
	UserID   int64
	Username string
	IsAdmin  bool
	// APIKey is the bearer credential that authenticated this caller.
	APIKey string
	// AccessToken marks callers authenticated by a configured static
	// token rather than an account.
	AccessToken bool
}

type contextKey int

const identityKey contextKey = iota

// FromContext retrieves the authenticated identity, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// BearerToken extracts the bearer credential from an Authorization
// header, or "" when absent or malformed.
func BearerToken(h http.Header) string {
	auth := h.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Verifier re-validates an external identity-provider token before the
// admin path trusts it.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// Auth authenticates chat-API callers: an account API key first, then the
// configured static access tokens. Disabled accounts are rejected with
// their stored reason.
func Auth(database *gorm.DB, accessTokens []string) func(http.Handler) http.Handler {
	static := make(map[string]struct{}, len(accessTokens))
	for _, tok := range accessTokens {
		if tok != "" {
			static[tok] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := BearerToken(r.Header)
			if credential == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing authentication credentials")
				return
			}

			user, err := db.GetUserByAPIKey(database, credential)
			switch {
			case err == nil:
				if !user.Enabled {
					reason := "account disabled"
					if user.DisableReason != nil {
						reason = *user.DisableReason
					}
					writeAuthError(w, http.StatusForbidden, reason)
					return
				}
				if err := db.TouchLastUsed(database, user.UserID); err != nil {
					logrus.WithError(err).WithField("user_id", user.UserID).
						Warn("failed to update last_used_at")
				}
				identity := &Identity{
					UserID:   user.UserID,
					Username: user.Username,
					IsAdmin:  user.IsAdmin,
					APIKey:   credential,
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
				return

			case errors.Is(err, db.ErrUserNotFound):
				if _, ok := static[credential]; ok {
					identity := &Identity{
						Username:    "access_token_user",
						APIKey:      credential,
						AccessToken: true,
					}
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "invalid API key")
				return

			default:
				logrus.WithError(err).Error("account lookup failed")
				writeAuthError(w, http.StatusInternalServerError, "account lookup failed")
				return
			}
		})
	}
}

// AdminAuth authenticates admin callers by their identity-provider token:
// the token is re-verified for liveness, resolved to an account, and the
// account must be enabled and flagged admin.
func AdminAuth(database *gorm.DB, verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := BearerToken(r.Header)
			if credential == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing login token")
				return
			}

			if err := verifier.Verify(r.Context(), credential); err != nil {
				logrus.WithError(err).Warn("identity provider rejected admin token")
				writeAuthError(w, http.StatusUnauthorized, "login token no longer valid")
				return
			}

			user, err := db.GetUserByExternalToken(database, credential)
			if errors.Is(err, db.ErrUserNotFound) {
				writeAuthError(w, http.StatusUnauthorized, "unknown login token")
				return
			}
			if err != nil {
				logrus.WithError(err).Error("account lookup failed")
				writeAuthError(w, http.StatusInternalServerError, "account lookup failed")
				return
			}
			if !user.Enabled {
				reason := "account disabled"
				if user.DisableReason != nil {
					reason = *user.DisableReason
				}
				writeAuthError(w, http.StatusForbidden, reason)
				return
			}
			if !user.IsAdmin {
				writeAuthError(w, http.StatusForbidden, "admin privileges required")
				return
			}

			identity := &Identity{
				UserID:   user.UserID,
				Username: user.Username,
				IsAdmin:  true,
				APIKey:   credential,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "authentication_error",
			"code":    status,
		},
	})
}
