package health

import (
	"fmt"
	"time"

	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Response struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	TruckCount *int64 `json:"truck_count,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func check(c *fiber.Ctx) (int64, error) {
	if database.DB == nil {
		return 0, fmt.Errorf("database not initialised")
	}
	sqlDB, err := database.DB.DB()
	if err != nil {
		return 0, err
	}
	if err := sqlDB.PingContext(c.UserContext()); err != nil {
		return 0, err
	}

	var count int64
	if err := database.DB.WithContext(c.UserContext()).Model(&models.Truck{}).Count(&count).Error; err != nil {
		// A reachable database without the table is still up.
		zap.L().Warn("health: truck count failed", zap.Error(err))
		return 0, nil
	}
	return count, nil
}

// GET /health
func Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := time.Now().UTC().Format(timestampLayout)

		count, err := check(c)
		if err != nil {
			zap.L().Error("health check failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(Response{
				Status:    "unhealthy",
				Database:  "error",
				Error:     err.Error(),
				Timestamp: now,
			})
		}

		return c.JSON(Response{
			Status:     "healthy",
			Database:   "connected",
			TruckCount: &count,
			Timestamp:  now,
		})
	}
}

// GET /
func RootHandler(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Truck Management System API",
			"version": version,
			"status":  "online",
			"endpoints": fiber.Map{
				"auth":           "/api/auth/login",
				"trucks":         "/api/trucks",
				"stats":          "/api/stats",
				"importTemplate": "/api/trucks/template",
				"importPreview":  "/api/trucks/import/preview",
				"importConfirm":  "/api/trucks/import/confirm",
				"health":         "/health",
				"metrics":        "/metrics",
			},
		})
	}
}
