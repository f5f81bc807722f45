package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formzs/poe-to-gpt/internal/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when no account matches the given key or id.
var ErrUserNotFound = errors.New("user not found")

// ErrEmptyReason is returned when a disable is attempted without a reason.
var ErrEmptyReason = errors.New("disable reason must not be empty")

// NewAPIKey mints a fresh caller-facing secret.
func NewAPIKey() string {
	return "sk-yn-" + uuid.New().String()
}

// GetUserByAPIKey looks up an account by its caller-facing key.
func GetUserByAPIKey(database *gorm.DB, apiKey string) (*models.User, error) {
	var user models.User
	if err := database.Where("api_key = ?", apiKey).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByExternalToken looks up an account by its identity-provider token.
func GetUserByExternalToken(database *gorm.DB, token string) (*models.User, error) {
	var user models.User
	if err := database.Where("external_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername looks up an account by its provider username.
func GetUserByUsername(database *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := database.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID looks up an account by its numeric id.
func GetUserByID(database *gorm.DB, userID int64) (*models.User, error) {
	var user models.User
	if err := database.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new account for a first-time identity-provider login.
func CreateUser(database *gorm.DB, apiKey, username, externalToken string) (*models.User, error) {
	user := models.User{
		APIKey:        apiKey,
		Username:      username,
		ExternalToken: externalToken,
		Enabled:       true,
	}
	if err := database.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateExternalToken replaces the stored identity-provider token after a
// re-login.
func UpdateExternalToken(database *gorm.DB, userID int64, externalToken string) error {
	res := database.Model(&models.User{}).Where("user_id = ?", userID).
		Update("external_token", externalToken)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ResetAPIKey atomically replaces the account's API key and returns the
// new one. The old key stops authenticating immediately.
func ResetAPIKey(database *gorm.DB, userID int64) (string, error) {
	newKey := NewAPIKey()
	res := database.Model(&models.User{}).Where("user_id = ?", userID).
		Update("api_key", newKey)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", ErrUserNotFound
	}
	return newKey, nil
}

// DisableUser turns an account off. Reason must be non-empty; it is
// surfaced to the caller on every rejected authentication.
func DisableUser(database *gorm.DB, userID int64, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrEmptyReason
	}
	res := database.Model(&models.User{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{"enabled": false, "disable_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EnableUser turns an account back on and clears the disable reason.
func EnableUser(database *gorm.DB, userID int64) error {
	res := database.Model(&models.User{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{"enabled": true, "disable_reason": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetAdmin sets the admin flag verbatim. There is deliberately no guard
// against revoking the last remaining admin.
func SetAdmin(database *gorm.DB, userID int64, isAdmin bool) error {
	res := database.Model(&models.User{}).Where("user_id = ?", userID).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ToggleUser flips the enabled state, using a fixed reason when the flip
// disables. Returns the new enabled state.
func ToggleUser(database *gorm.DB, userID int64) (bool, error) {
	user, err := GetUserByID(database, userID)
	if err != nil {
		return false, err
	}
	if user.Enabled {
		if err := DisableUser(database, userID, "disabled by admin"); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := EnableUser(database, userID); err != nil {
		return false, err
	}
	return true, nil
}

// TouchLastUsed records a successful authenticated use. Best-effort: the
// caller ignores the returned error apart from logging.
func TouchLastUsed(database *gorm.DB, userID int64) error {
	now := time.Now()
	return database.Model(&models.User{}).Where("user_id = ?", userID).
		Update("last_used_at", &now).Error
}

// ListFilter narrows and orders the account listing.
type ListFilter struct {
	Search      string // free-text match against id or username
	Status      string // "enabled" | "disabled" | ""
	AdminFilter string // "admin" | "user" | ""
	SortBy      string // allow-listed column name
	SortDir     string // "asc" | "desc"
}

// Only these columns may be sorted on; anything else falls back to the
// default ordering.
var sortColumns = map[string]string{
	"username":     "username",
	"user_id":      "user_id",
	"created_at":   "created_at",
	"last_used_at": "last_used_at",
}

// ListUsers returns accounts matching the filter, most recently created
// first unless the filter says otherwise.
func ListUsers(database *gorm.DB, filter ListFilter) ([]models.User, error) {
	q := database.Model(&models.User{})

	if s := strings.TrimSpace(filter.Search); s != "" {
		term := "%" + strings.ToLower(s) + "%"
		q = q.Where("CAST(user_id AS TEXT) LIKE ? OR LOWER(username) LIKE ?", term, term)
	}
	switch filter.Status {
	case "enabled":
		q = q.Where("enabled = ?", true)
	case "disabled":
		q = q.Where("enabled = ?", false)
	}
	switch filter.AdminFilter {
	case "admin":
		q = q.Where("is_admin = ?", true)
	case "user":
		q = q.Where("is_admin = ?", false)
	}

	if col, ok := sortColumns[filter.SortBy]; ok {
		dir := "ASC"
		if strings.EqualFold(filter.SortDir, "desc") {
			dir = "DESC"
		}
		q = q.Order(fmt.Sprintf("%s %s", col, dir))
	} else {
		q = q.Order("created_at DESC")
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
