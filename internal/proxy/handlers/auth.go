package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/formzs/poe-to-gpt/internal/db"
	"github.com/formzs/poe-to-gpt/internal/pool"
	"github.com/formzs/poe-to-gpt/internal/proxy/middleware"
	"github.com/formzs/poe-to-gpt/internal/util"
)

// SelfResetHandler lets a caller rotate their own API key by presenting
// the current one.
func SelfResetHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		credential := middleware.BearerToken(r.Header)
		if credential == "" {
			writeError(w, http.StatusUnauthorized, "missing authentication credentials", errTypeAuth)
			return
		}

		user, err := db.GetUserByAPIKey(database, credential)
		if errors.Is(err, db.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "unknown API key", errTypeAuth)
			return
		}
		if err != nil {
			logrus.WithError(err).Error("account lookup failed")
			writeError(w, http.StatusInternalServerError, "account lookup failed", errTypeInternal)
			return
		}
		if !user.Enabled {
			reason := "account disabled"
			if user.DisableReason != nil {
				reason = *user.DisableReason
			}
			writeError(w, http.StatusForbidden, reason, errTypeAuth)
			return
		}

		newKey, err := db.ResetAPIKey(database, user.UserID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.UserID).Error("self reset failed")
			writeError(w, http.StatusInternalServerError, "key reset failed", errTypeInternal)
			return
		}
		logrus.WithField("user_id", user.UserID).Info("user reset own api key")
		writeJSON(w, http.StatusOK, map[string]interface{}{"apiKey": newKey})
	}
}

// AddTokenHandler admits an upstream token into the rotation pool at
// runtime. The response body is a bare status string for script use.
func AddTokenHandler(tokens *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.FormValue("token")

		err := tokens.Admit(r.Context(), token)
		switch {
		case err == nil:
			logrus.WithField("token", util.TruncateLog(token, 12)).Info("upstream token admitted")
			writeJSON(w, http.StatusOK, "ok")
		case errors.Is(err, pool.ErrDuplicate):
			writeJSON(w, http.StatusOK, "exist")
		default:
			logrus.WithError(err).Warn("upstream token rejected")
			writeJSON(w, http.StatusOK, "failed: "+err.Error())
		}
	}
}
