package auth

import (
	"errors"
	"strings"

	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/metrics"
	"truck-tracker-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxClaimsKey   = "claims"
	CtxUsernameKey = "username"
	CtxUserRoleKey = "user_role"
)

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			metrics.AuthFailuresTotal.WithLabelValues("missing_token").Inc()
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(fiber.StatusUnauthorized, "Could not validate credentials - no bearer token")
		}

		claims, err := ParseToken(cfg.JWTSecret, strings.TrimSpace(parts[1]))
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				reason = "expired_token"
			}
			metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return fiber.NewError(fiber.StatusUnauthorized, "Could not validate credentials - "+err.Error())
		}

		c.Locals(CtxClaimsKey, claims)
		c.Locals(CtxUsernameKey, claims.Subject)
		c.Locals(CtxUserRoleKey, claims.Role)

		return c.Next()
	}
}

// RequireRole admits callers whose role ranks at least min.
func RequireRole(min models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok || !role.AtLeast(min) {
			metrics.AuthFailuresTotal.WithLabelValues("insufficient_role").Inc()
			return fiber.NewError(fiber.StatusForbidden, "Not enough permissions")
		}
		return c.Next()
	}
}

// CurrentClaims returns the verified claims of the request, or nil on public routes.
func CurrentClaims(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(CtxClaimsKey).(*Claims)
	return claims
}

func CurrentUsername(c *fiber.Ctx) string {
	username, _ := c.Locals(CtxUsernameKey).(string)
	return username
}
