package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, time.Hour, cfg.JWTExpiration)
	assert.Equal(t, SessionStoreMemory, cfg.SessionStore)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Empty(t, cfg.DemoAccounts)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOriginList())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_DSN", "file:trucks.db")
	t.Setenv("JWT_EXPIRATION_MINUTES", "15")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("DEMO_ACCOUNTS", "admin:admin123:admin, viewer:viewer123:viewer")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "file:trucks.db", cfg.DatabaseDSN)
	assert.Equal(t, 15*time.Minute, cfg.JWTExpiration)
	assert.Equal(t, SessionStoreRedis, cfg.SessionStore)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []DemoAccount{
		{Username: "admin", Password: "admin123", Role: "admin"},
		{Username: "viewer", Password: "viewer123", Role: "viewer"},
	}, cfg.DemoAccounts)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOriginList())
}

func TestLoadRejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be at least 32 characters")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWTSecret:      testSecret,
			JWTExpiration:  time.Hour,
			DatabaseDriver: DriverSQLite,
			SessionStore:   SessionStoreMemory,
			SessionTTL:     time.Minute,
			BodyLimitMB:    1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET is not set"},
		{name: "unknown driver", mutate: func(c *Config) { c.DatabaseDriver = "mysql" }, wantErr: `unsupported DATABASE_DRIVER "mysql"`},
		{name: "unknown session store", mutate: func(c *Config) { c.SessionStore = "etcd" }, wantErr: `unsupported SESSION_STORE "etcd"`},
		{name: "zero ttl", mutate: func(c *Config) { c.SessionTTL = 0 }, wantErr: "SESSION_TTL_MINUTES must be positive"},
		{name: "half bootstrap admin", mutate: func(c *Config) { c.BootstrapAdminUsername = "root" }, wantErr: "must be set together"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseDemoAccounts(t *testing.T) {
	accounts, err := ParseDemoAccounts("")
	require.NoError(t, err)
	assert.Nil(t, accounts)

	_, err = ParseDemoAccounts("admin:admin123")
	assert.ErrorContains(t, err, "must be username:password:role")

	_, err = ParseDemoAccounts("admin:admin123:root")
	assert.ErrorContains(t, err, `unknown role "root"`)

	_, err = ParseDemoAccounts("admin:a:admin,admin:b:user")
	assert.ErrorContains(t, err, `lists "admin" twice`)
}

func TestWarnings(t *testing.T) {
	cfg := &Config{
		DatabaseDriver: DriverPostgres,
		DatabaseDSN:    defaultDSN,
		CORSOrigins:    defaultCORSOrigins,
		SessionStore:   SessionStoreRedis,
	}
	assert.Len(t, cfg.Warnings(), 2)

	cfg.DemoAccounts = []DemoAccount{{Username: "a", Password: "b", Role: "viewer"}}
	cfg.SessionStore = SessionStoreMemory
	assert.Len(t, cfg.Warnings(), 4)
}
