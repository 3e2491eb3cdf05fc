package admin

import (
	"errors"
	"fmt"

	"truck-tracker-backend/internal/audit"
	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserListItem struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Role      models.UserRole `json:"role"`
	CreatedAt string          `json:"created_at"`
}

// ----------------------------------------
// USER LIST
// ----------------------------------------

func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := database.DB.Order("created_at").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch users")
		}

		res := make([]UserListItem, 0, len(users))
		for _, u := range users {
			res = append(res, UserListItem{
				ID:        u.ID,
				Username:  u.Username,
				Role:      u.Role,
				CreatedAt: u.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}

// ----------------------------------------
// USER DELETE
// ----------------------------------------

func DeleteUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		current := auth.CurrentUsername(c)

		var user models.User
		if err := database.DB.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "User not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete user: "+err.Error())
		}

		if user.Username == current {
			return fiber.NewError(fiber.StatusBadRequest, "Cannot delete yourself")
		}

		if err := database.DB.Delete(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete user: "+err.Error())
		}

		if err := audit.WriteLog(audit.LogOptions{
			UserName:    current,
			EntityType:  models.EntityUser,
			EntityID:    user.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("User deleted: %s (%s)", user.Username, user.Role),
			Before:      auth.UserResponse{ID: user.ID, Username: user.Username, Role: user.Role},
		}); err != nil {
			zap.L().Warn("audit log failed", zap.Error(err))
		}

		return c.JSON(fiber.Map{"message": "User deleted successfully"})
	}
}
