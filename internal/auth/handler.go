package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"truck-tracker-backend/internal/audit"
	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/metrics"
	"truck-tracker-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	Role        models.UserRole `json:"role"`
	IsGuest     bool            `json:"is_guest,omitempty"`
}

type RegisterRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type UserResponse struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
}

// LoginHandler accepts JSON, urlencoded and multipart bodies.
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Username = strings.TrimSpace(body.Username)
		if body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username and password required")
		}

		role, ok, err := authenticate(cfg, body.Username, body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Login failed: "+err.Error())
		}
		if !ok {
			metrics.AuthFailuresTotal.WithLabelValues("bad_credentials").Inc()
			return fiber.NewError(fiber.StatusUnauthorized, "Incorrect username or password")
		}

		token, err := GenerateToken(cfg.JWTSecret, body.Username, role, false, cfg.JWTExpiration)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create token")
		}

		return c.JSON(TokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
			Role:        role,
		})
	}
}

// authenticate checks the configured demo accounts first, then the users table.
func authenticate(cfg *config.Config, username, password string) (models.UserRole, bool, error) {
	for _, acc := range cfg.DemoAccounts {
		if acc.Username != username {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(acc.Password), []byte(password)) == 1 {
			return models.UserRole(acc.Role), true, nil
		}
		return "", false, nil
	}

	var user models.User
	if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", false, nil
	}
	return user.Role, true, nil
}

func GuestLoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := GenerateToken(cfg.JWTSecret, GuestSubject, models.RoleViewer, true, cfg.JWTExpiration)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Guest login failed")
		}

		return c.JSON(TokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
			Role:        models.RoleViewer,
			IsGuest:     true,
		})
	}
}

// RegisterHandler creates a user. Admin only.
func RegisterHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Username = strings.TrimSpace(body.Username)
		if body.Username == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username and password required")
		}
		if body.Role == "" {
			body.Role = models.RoleUser
		}
		if !body.Role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid role")
		}

		user, err := database.CreateUser(database.DB, body.Username, body.Password, body.Role)
		if err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return fiber.NewError(fiber.StatusBadRequest, "Username already exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to create user: "+err.Error())
		}

		resp := UserResponse{ID: user.ID, Username: user.Username, Role: user.Role}
		_ = audit.WriteLog(audit.LogOptions{
			UserName:    CurrentUsername(c),
			EntityType:  models.EntityUser,
			EntityID:    user.ID,
			Action:      models.AuditActionCreate,
			Description: "User created: " + user.Username,
			After:       resp,
		})

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "User '" + user.Username + "' created successfully",
			"user":    resp,
		})
	}
}
