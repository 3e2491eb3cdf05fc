package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SessionStoreMemory = "memory"
	SessionStoreBadger = "badger"
	SessionStoreRedis  = "redis"

	defaultDSN         = "host=localhost user=postgres password=postgres dbname=trucks port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
	minJWTSecretLength = 32
)

type Config struct {
	HTTPPort       string
	DatabaseDriver string
	DatabaseDSN    string
	JWTSecret      string
	JWTExpiration  time.Duration
	CORSOrigins    string
	BodyLimitMB    int

	// DemoAccounts bypass the users table. Empty unless DEMO_ACCOUNTS is set.
	DemoAccounts []DemoAccount

	BootstrapAdminUsername string
	BootstrapAdminPassword string

	SessionStore  string
	SessionTTL    time.Duration
	BadgerPath    string
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	LogLevel  string
	LogFormat string
}

type DemoAccount struct {
	Username string
	Password string
	Role     string
}

// Load reads .env (if present), the optional CONFIG_FILE and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	accounts, err := ParseDemoAccounts(v.GetString("DEMO_ACCOUNTS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:               v.GetString("HTTP_PORT"),
		DatabaseDriver:         strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:            v.GetString("DATABASE_DSN"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTExpiration:          time.Duration(v.GetInt("JWT_EXPIRATION_MINUTES")) * time.Minute,
		CORSOrigins:            v.GetString("CORS_ALLOWED_ORIGINS"),
		BodyLimitMB:            v.GetInt("BODY_LIMIT_MB"),
		DemoAccounts:           accounts,
		BootstrapAdminUsername: v.GetString("BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		SessionStore:           strings.ToLower(v.GetString("SESSION_STORE")),
		SessionTTL:             time.Duration(v.GetInt("SESSION_TTL_MINUTES")) * time.Minute,
		BadgerPath:             v.GetString("BADGER_PATH"),
		RedisAddress:           v.GetString("REDIS_ADDRESS"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                v.GetInt("REDIS_DB"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_DSN", defaultDSN)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION_MINUTES", 60)
	v.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSOrigins)
	v.SetDefault("BODY_LIMIT_MB", 16)
	v.SetDefault("DEMO_ACCOUNTS", "")
	v.SetDefault("BOOTSTRAP_ADMIN_USERNAME", "")
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "")
	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL_MINUTES", 30)
	v.SetDefault("BADGER_PATH", "./data/sessions")
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	} else if len(c.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	if c.JWTExpiration <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINUTES must be positive"))
	}

	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreBadger, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_MINUTES must be positive"))
	}
	if c.BodyLimitMB <= 0 {
		errs = append(errs, errors.New("BODY_LIMIT_MB must be positive"))
	}
	if (c.BootstrapAdminUsername == "") != (c.BootstrapAdminPassword == "") {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

// Warnings lists settings that are acceptable for development but not for production.
func (c *Config) Warnings() []string {
	var out []string
	if c.DatabaseDriver == DriverPostgres && c.DatabaseDSN == defaultDSN {
		out = append(out, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	if len(c.DemoAccounts) > 0 {
		out = append(out, "DEMO_ACCOUNTS is enabled, demo credentials bypass the users table")
	}
	if c.SessionStore == SessionStoreMemory {
		out = append(out, "SESSION_STORE=memory, pending imports are lost on restart and not shared between instances")
	}
	return out
}

// ParseDemoAccounts parses "username:password:role" triples separated by commas.
func ParseDemoAccounts(raw string) ([]DemoAccount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var accounts []DemoAccount
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("DEMO_ACCOUNTS entry %q must be username:password:role", entry)
		}
		acc := DemoAccount{
			Username: strings.TrimSpace(parts[0]),
			Password: strings.TrimSpace(parts[1]),
			Role:     strings.TrimSpace(parts[2]),
		}
		if acc.Username == "" || acc.Password == "" {
			return nil, fmt.Errorf("DEMO_ACCOUNTS entry %q has an empty username or password", entry)
		}
		switch acc.Role {
		case "viewer", "user", "admin":
		default:
			return nil, fmt.Errorf("DEMO_ACCOUNTS entry %q has unknown role %q", entry, acc.Role)
		}
		if seen[acc.Username] {
			return nil, fmt.Errorf("DEMO_ACCOUNTS lists %q twice", acc.Username)
		}
		seen[acc.Username] = true
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// CORSOriginList splits the comma separated CORS_ALLOWED_ORIGINS value.
func (c *Config) CORSOriginList() []string {
	origins := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
