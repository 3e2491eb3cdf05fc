package admin

import (
	"net/http"
	"testing"
	"time"

	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/models"
	"truck-tracker-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUsersApp(t *testing.T) *fiber.App {
	t.Helper()
	app := testutil.NewApp()
	g := app.Group("/api/users", auth.JWTMiddleware(testutil.Config()), auth.RequireRole(models.RoleAdmin))
	g.Get("/", ListUsersHandler())
	g.Delete("/:id", DeleteUserHandler())
	return app
}

func adminToken(t *testing.T, name string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testutil.JWTSecret, name, models.RoleAdmin, false, time.Hour)
	require.NoError(t, err)
	return tok
}

func seedUser(t *testing.T, db *gorm.DB, name string, role models.UserRole) models.User {
	t.Helper()
	u := models.User{Username: name, PasswordHash: "hash", Role: role}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func TestListUsers(t *testing.T) {
	db := testutil.NewDB(t)
	app := newUsersApp(t)
	seedUser(t, db, "root", models.RoleAdmin)
	seedUser(t, db, "alice", models.RoleUser)

	var users []UserListItem
	resp := testutil.Do(t, app, http.MethodGet, "/api/users", adminToken(t, "root"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &users)
	require.Len(t, users, 2)
	assert.ElementsMatch(t, []string{"root", "alice"}, []string{users[0].Username, users[1].Username})
	assert.NotEmpty(t, users[0].CreatedAt)

	viewer, err := auth.GenerateToken(testutil.JWTSecret, "bob", models.RoleViewer, false, time.Hour)
	require.NoError(t, err)
	resp = testutil.Do(t, app, http.MethodGet, "/api/users", viewer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDeleteUser(t *testing.T) {
	db := testutil.NewDB(t)
	app := newUsersApp(t)
	root := seedUser(t, db, "root", models.RoleAdmin)
	alice := seedUser(t, db, "alice", models.RoleUser)
	token := adminToken(t, "root")

	resp := testutil.Do(t, app, http.MethodDelete, "/api/users/"+root.ID, token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot delete yourself", testutil.Detail(t, resp))

	resp = testutil.Do(t, app, http.MethodDelete, "/api/users/unknown", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", testutil.Detail(t, resp))

	resp = testutil.Do(t, app, http.MethodDelete, "/api/users/"+alice.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "User deleted successfully", body["message"])

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var log models.AuditLog
	require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", models.EntityUser, alice.ID).First(&log).Error)
	assert.Equal(t, models.AuditActionDelete, log.Action)
	assert.Equal(t, "root", log.UserName)
	assert.NotContains(t, log.BeforeData, "hash")
}
