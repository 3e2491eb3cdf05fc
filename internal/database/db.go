package database

import (
	"errors"
	"fmt"
	"time"

	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate key")

// PasswordCost is the bcrypt cost for stored password hashes.
const PasswordCost = 12

func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(log), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.DatabaseDriver, err)
	}

	if cfg.DatabaseDriver == config.DriverSQLite {
		// SQLite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Truck{}, &models.User{}, &models.AuditLog{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Init opens the database, migrates it and seeds the bootstrap admin when configured.
func Init(cfg *config.Config, log *zap.Logger) error {
	db, err := Open(cfg, log)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	DB = db

	if cfg.BootstrapAdminUsername != "" {
		created, err := EnsureUser(db, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("seeding bootstrap admin: %w", err)
		}
		if created {
			log.Info("bootstrap admin created", zap.String("username", cfg.BootstrapAdminUsername))
		}
	}

	log.Info("database ready", zap.String("driver", cfg.DatabaseDriver))
	return nil
}

// CreateUser hashes the password and inserts a user. A taken username
// yields ErrDuplicate.
func CreateUser(db *gorm.DB, username, password string, role models.UserRole) (*models.User, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicate
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// EnsureUser creates the user unless the username already exists.
func EnsureUser(db *gorm.DB, username, password string, role models.UserRole) (bool, error) {
	_, err := CreateUser(db, username, password, role)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

// IsUniqueViolation matches PostgreSQL 23505 and gorm's translated error.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
