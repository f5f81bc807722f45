package db

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/formzs/poe-to-gpt/internal/db/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func mustCreateUser(t *testing.T, database *gorm.DB, username string) *models.User {
	t.Helper()
	user, err := CreateUser(database, NewAPIKey(), username, "ext-"+username)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user
}

func TestNewAPIKey_Format(t *testing.T) {
	key := NewAPIKey()
	if !strings.HasPrefix(key, "sk-yn-") {
		t.Errorf("key %q missing sk-yn- prefix", key)
	}
	if key == NewAPIKey() {
		t.Error("two minted keys collided")
	}
}

func TestCreateAndLookup(t *testing.T) {
	database := newTestDB(t)
	user := mustCreateUser(t, database, "alice")

	byKey, err := GetUserByAPIKey(database, user.APIKey)
	if err != nil {
		t.Fatalf("GetUserByAPIKey: %v", err)
	}
	if byKey.UserID != user.UserID || byKey.Username != "alice" {
		t.Errorf("lookup mismatch: %+v", byKey)
	}
	if !byKey.Enabled || byKey.DisableReason != nil {
		t.Errorf("new user should be enabled with nil reason: %+v", byKey)
	}

	byToken, err := GetUserByExternalToken(database, "ext-alice")
	if err != nil {
		t.Fatalf("GetUserByExternalToken: %v", err)
	}
	if byToken.UserID != user.UserID {
		t.Errorf("external token lookup mismatch")
	}

	if _, err := GetUserByAPIKey(database, "sk-yn-unknown"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown key error = %v, want ErrUserNotFound", err)
	}
}

func TestResetAPIKey(t *testing.T) {
	database := newTestDB(t)
	user := mustCreateUser(t, database, "bob")
	oldKey := user.APIKey

	newKey, err := ResetAPIKey(database, user.UserID)
	if err != nil {
		t.Fatalf("ResetAPIKey: %v", err)
	}
	if newKey == oldKey {
		t.Error("reset returned the old key")
	}

	if _, err := GetUserByAPIKey(database, oldKey); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("old key still resolves after reset: %v", err)
	}
	if _, err := GetUserByAPIKey(database, newKey); err != nil {
		t.Errorf("new key does not resolve: %v", err)
	}

	if _, err := ResetAPIKey(database, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("reset of unknown user = %v, want ErrUserNotFound", err)
	}
}

func TestDisableEnable_ReasonInvariant(t *testing.T) {
	database := newTestDB(t)
	user := mustCreateUser(t, database, "carol")

	if err := DisableUser(database, user.UserID, ""); err == nil {
		t.Error("empty disable reason accepted")
	}

	if err := DisableUser(database, user.UserID, "abuse"); err != nil {
		t.Fatalf("DisableUser: %v", err)
	}
	got, _ := GetUserByID(database, user.UserID)
	if got.Enabled {
		t.Error("user still enabled after disable")
	}
	if got.DisableReason == nil || *got.DisableReason != "abuse" {
		t.Errorf("disable reason = %v, want abuse", got.DisableReason)
	}

	if err := EnableUser(database, user.UserID); err != nil {
		t.Fatalf("EnableUser: %v", err)
	}
	got, _ = GetUserByID(database, user.UserID)
	if !got.Enabled || got.DisableReason != nil {
		t.Errorf("enable did not clear reason: enabled=%v reason=%v", got.Enabled, got.DisableReason)
	}
}

func TestToggleUser(t *testing.T) {
	database := newTestDB(t)
	user := mustCreateUser(t, database, "dave")

	enabled, err := ToggleUser(database, user.UserID)
	if err != nil {
		t.Fatalf("ToggleUser: %v", err)
	}
	if enabled {
		t.Error("first toggle should disable")
	}
	got, _ := GetUserByID(database, user.UserID)
	if got.DisableReason == nil || *got.DisableReason != "disabled by admin" {
		t.Errorf("toggle reason = %v, want default", got.DisableReason)
	}

	enabled, err = ToggleUser(database, user.UserID)
	if err != nil {
		t.Fatalf("ToggleUser (2nd): %v", err)
	}
	if !enabled {
		t.Error("second toggle should re-enable")
	}

	if _, err := ToggleUser(database, 4242); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("toggle of unknown user = %v, want ErrUserNotFound", err)
	}
}

func TestSetAdmin(t *testing.T) {
	database := newTestDB(t)
	user := mustCreateUser(t, database, "erin")

	if err := SetAdmin(database, user.UserID, true); err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	got, _ := GetUserByID(database, user.UserID)
	if !got.IsAdmin {
		t.Error("admin flag not set")
	}

	// No last-admin guard: demoting the only admin succeeds.
	if err := SetAdmin(database, user.UserID, false); err != nil {
		t.Fatalf("SetAdmin(false): %v", err)
	}
	got, _ = GetUserByID(database, user.UserID)
	if got.IsAdmin {
		t.Error("admin flag not cleared")
	}
}

func TestListUsers_FiltersAndSort(t *testing.T) {
	database := newTestDB(t)
	a := mustCreateUser(t, database, "zoe")
	b := mustCreateUser(t, database, "adam")
	c := mustCreateUser(t, database, "mallory")

	if err := SetAdmin(database, b.UserID, true); err != nil {
		t.Fatal(err)
	}
	if err := DisableUser(database, c.UserID, "spam"); err != nil {
		t.Fatal(err)
	}

	users, err := ListUsers(database, ListFilter{Status: "disabled"})
	if err != nil {
		t.Fatalf("ListUsers disabled: %v", err)
	}
	if len(users) != 1 || users[0].UserID != c.UserID {
		t.Errorf("disabled filter returned %d users", len(users))
	}

	users, err = ListUsers(database, ListFilter{AdminFilter: "admin"})
	if err != nil {
		t.Fatalf("ListUsers admin: %v", err)
	}
	if len(users) != 1 || users[0].UserID != b.UserID {
		t.Errorf("admin filter returned wrong rows: %+v", users)
	}

	users, err = ListUsers(database, ListFilter{Search: "zo"})
	if err != nil {
		t.Fatalf("ListUsers search: %v", err)
	}
	if len(users) != 1 || users[0].UserID != a.UserID {
		t.Errorf("search filter returned wrong rows: %+v", users)
	}

	users, err = ListUsers(database, ListFilter{SortBy: "username", SortDir: "asc"})
	if err != nil {
		t.Fatalf("ListUsers sorted: %v", err)
	}
	if len(users) != 3 || users[0].Username != "adam" || users[2].Username != "zoe" {
		t.Errorf("sort by username asc wrong: %+v", users)
	}

	// Unknown sort column falls back to default ordering rather than
	// reaching the SQL layer.
	if _, err := ListUsers(database, ListFilter{SortBy: "api_key; DROP TABLE users"}); err != nil {
		t.Errorf("unexpected error for non-allow-listed sort: %v", err)
	}
}
