// Package testutil holds fixtures shared by handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const JWTSecret = "test-secret-with-at-least-32-characters"

func Config() *config.Config {
	return &config.Config{
		HTTPPort:       "0",
		DatabaseDriver: config.DriverSQLite,
		DatabaseDSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		JWTSecret:      JWTSecret,
		JWTExpiration:  time.Hour,
		CORSOrigins:    "http://localhost:5173",
		BodyLimitMB:    16,
		SessionStore:   config.SessionStoreMemory,
		SessionTTL:     30 * time.Minute,
		LogLevel:       "debug",
		LogFormat:      "console",
	}
}

// NewDB opens a private in-memory SQLite database, migrates it and installs
// it as database.DB for the duration of the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(Config(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewApp returns a Fiber app with the production error envelope.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: logger.ErrorHandler(zap.NewNop()),
		BodyLimit:    16 * 1024 * 1024,
	})
}

// Do sends a request with an optional JSON body and bearer token.
func Do(t testing.TB, app *fiber.App, method, target, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// DecodeJSON reads and closes the response body.
func DecodeJSON(t testing.TB, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// Detail extracts the error envelope message.
func Detail(t testing.TB, resp *http.Response) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	DecodeJSON(t, resp, &body)
	return body.Detail
}
