package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/formzs/poe-to-gpt/internal/db"
)

// ResetKeyHandler rotates a user's API key on behalf of an admin.
func ResetKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id", errTypeInvalidRequest)
			return
		}
		newKey, err := db.ResetAPIKey(database, userID)
		if errors.Is(err, db.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", errTypeInvalidRequest)
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("key reset failed")
			writeError(w, http.StatusInternalServerError, "key reset failed", errTypeInternal)
			return
		}
		logrus.WithField("user_id", userID).Info("admin reset api key")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"new_key": newKey,
		})
	}
}

// DisableHandler turns an account off with a mandatory reason.
func DisableHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id", errTypeInvalidRequest)
			return
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", errTypeInvalidRequest)
			return
		}
		err := db.DisableUser(database, userID, body.Reason)
		switch {
		case errors.Is(err, db.ErrEmptyReason):
			writeError(w, http.StatusBadRequest, "disable reason is required", errTypeInvalidRequest)
		case errors.Is(err, db.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found", errTypeInvalidRequest)
		case err != nil:
			logrus.WithError(err).WithField("user_id", userID).Error("disable failed")
			writeError(w, http.StatusInternalServerError, "disable failed", errTypeInternal)
		default:
			logrus.WithFields(logrus.Fields{"user_id": userID, "reason": body.Reason}).
				Info("admin disabled user")
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		}
	}
}

// EnableHandler turns an account back on and clears its disable reason.
func EnableHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id", errTypeInvalidRequest)
			return
		}
		err := db.EnableUser(database, userID)
		switch {
		case errors.Is(err, db.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found", errTypeInvalidRequest)
		case err != nil:
			logrus.WithError(err).WithField("user_id", userID).Error("enable failed")
			writeError(w, http.StatusInternalServerError, "enable failed", errTypeInternal)
		default:
			logrus.WithField("user_id", userID).Info("admin enabled user")
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		}
	}
}

// ToggleAdminHandler sets the admin flag from the request body. An
// absent field demotes, matching the endpoint's historical default.
// There is no guard against revoking the last remaining admin.
func ToggleAdminHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id", errTypeInvalidRequest)
			return
		}
		var body struct {
			IsAdmin bool `json:"is_admin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", errTypeInvalidRequest)
			return
		}
		err := db.SetAdmin(database, userID, body.IsAdmin)
		if errors.Is(err, db.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", errTypeInvalidRequest)
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("admin toggle failed")
			writeError(w, http.StatusInternalServerError, "admin toggle failed", errTypeInternal)
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": userID, "is_admin": body.IsAdmin}).
			Info("admin flag updated")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"is_admin": body.IsAdmin,
		})
	}
}

// ListUsersHandler returns the account listing filtered by query params.
func ListUsersHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		users, err := db.ListUsers(database, db.ListFilter{
			Search:      q.Get("search"),
			Status:      q.Get("status"),
			AdminFilter: q.Get("admin_filter"),
			SortBy:      q.Get("sort_by"),
			SortDir:     q.Get("sort_dir"),
		})
		if err != nil {
			logrus.WithError(err).Error("user listing failed")
			writeError(w, http.StatusInternalServerError, "user listing failed", errTypeInternal)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
	}
}

// ToggleUserHandler flips the enabled state and reports the new one.
func ToggleUserHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id", errTypeInvalidRequest)
			return
		}
		enabled, err := db.ToggleUser(database, userID)
		if errors.Is(err, db.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found", errTypeInvalidRequest)
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("user toggle failed")
			writeError(w, http.StatusInternalServerError, "user toggle failed", errTypeInternal)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"enabled": enabled,
		})
	}
}
