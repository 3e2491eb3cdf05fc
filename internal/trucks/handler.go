package trucks

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"truck-tracker-backend/internal/audit"
	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/metrics"
	"truck-tracker-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateTruckRequest struct {
	Terminal          string             `json:"terminal" validate:"required,max=50"`
	ShippingNo        string             `json:"shipping_no" validate:"required,max=100"`
	DockCode          string             `json:"dock_code" validate:"required,max=50"`
	TruckRoute        string             `json:"truck_route" validate:"required,max=100"`
	PreparationStart  *string            `json:"preparation_start" validate:"omitempty,max=10"`
	PreparationEnd    *string            `json:"preparation_end" validate:"omitempty,max=10"`
	LoadingStart      *string            `json:"loading_start" validate:"omitempty,max=10"`
	LoadingEnd        *string            `json:"loading_end" validate:"omitempty,max=10"`
	StatusPreparation models.TruckStatus `json:"status_preparation"`
	StatusLoading     models.TruckStatus `json:"status_loading"`
}

// updatableFields are the columns PUT may touch, in column order.
var updatableFields = []string{
	"terminal", "shipping_no", "dock_code", "truck_route",
	"preparation_start", "preparation_end", "loading_start", "loading_end",
	"status_preparation", "status_loading",
}

var (
	requiredTextFields = map[string]bool{"terminal": true, "shipping_no": true, "dock_code": true, "truck_route": true}
	timeFields         = map[string]bool{"preparation_start": true, "preparation_end": true, "loading_start": true, "loading_end": true}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func logAudit(opts audit.LogOptions) {
	if err := audit.WriteLog(opts); err != nil {
		zap.L().Warn("audit log failed", zap.String("entity_id", opts.EntityID), zap.Error(err))
	}
}

// -------------------------
// GET /api/trucks
// -------------------------
func ListTrucksHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := ParseFilter(c)
		if err != nil {
			return err
		}
		skip, limit, err := ParsePage(c)
		if err != nil {
			return err
		}

		trucks := make([]models.Truck, 0)
		err = filter.Apply(database.DB.Model(&models.Truck{})).
			Order("created_at DESC").
			Offset(skip).
			Limit(limit).
			Find(&trucks).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch trucks: "+err.Error())
		}
		return c.JSON(trucks)
	}
}

func findTruck(id string) (*models.Truck, error) {
	var truck models.Truck
	if err := database.DB.First(&truck, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Truck not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch truck: "+err.Error())
	}
	return &truck, nil
}

// GET /api/trucks/:id
func GetTruckHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		truck, err := findTruck(c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(truck)
	}
}

// -------------------------
// POST /api/trucks
// -------------------------
func CreateTruckHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateTruckRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Terminal = strings.TrimSpace(body.Terminal)
		body.ShippingNo = strings.TrimSpace(body.ShippingNo)
		body.DockCode = strings.TrimSpace(body.DockCode)
		body.TruckRoute = strings.TrimSpace(body.TruckRoute)
		body.PreparationStart = trimOptional(body.PreparationStart)
		body.PreparationEnd = trimOptional(body.PreparationEnd)
		body.LoadingStart = trimOptional(body.LoadingStart)
		body.LoadingEnd = trimOptional(body.LoadingEnd)

		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
		}

		if body.StatusPreparation == "" {
			body.StatusPreparation = models.StatusOnProcess
		}
		if body.StatusLoading == "" {
			body.StatusLoading = models.StatusOnProcess
		}
		if !body.StatusPreparation.Valid() || !body.StatusLoading.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid status value")
		}

		truck := models.Truck{
			Terminal:          body.Terminal,
			ShippingNo:        body.ShippingNo,
			DockCode:          body.DockCode,
			TruckRoute:        body.TruckRoute,
			PreparationStart:  body.PreparationStart,
			PreparationEnd:    body.PreparationEnd,
			LoadingStart:      body.LoadingStart,
			LoadingEnd:        body.LoadingEnd,
			StatusPreparation: body.StatusPreparation,
			StatusLoading:     body.StatusLoading,
		}
		if err := database.DB.Create(&truck).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to create truck: "+err.Error())
		}

		metrics.TruckMutationsTotal.WithLabelValues("create").Inc()
		logAudit(audit.LogOptions{
			UserName:    auth.CurrentUsername(c),
			EntityType:  models.EntityTruck,
			EntityID:    truck.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Truck created: %s (%s)", truck.ShippingNo, truck.Terminal),
			After:       truck,
		})

		return c.Status(fiber.StatusCreated).JSON(truck)
	}
}

// parseUpdates turns a PUT body into a column map. A key that is present
// with null clears a time column; absent keys are left alone.
func parseUpdates(raw map[string]json.RawMessage) (map[string]any, error) {
	updates := make(map[string]any)

	for _, field := range updatableFields {
		value, ok := raw[field]
		if !ok {
			continue
		}

		if string(value) == "null" {
			if !timeFields[field] {
				return nil, fiber.NewError(fiber.StatusBadRequest, field+" cannot be null")
			}
			updates[field] = nil
			continue
		}

		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid value for "+field)
		}
		s = strings.TrimSpace(s)

		switch {
		case requiredTextFields[field]:
			if s == "" {
				return nil, fiber.NewError(fiber.StatusBadRequest, field+" cannot be empty")
			}
			updates[field] = s
		case timeFields[field]:
			if s == "" {
				updates[field] = nil
			} else {
				updates[field] = s
			}
		default:
			if !models.TruckStatus(s).Valid() {
				return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid status value")
			}
			updates[field] = s
		}
	}

	if len(updates) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No fields to update")
	}
	return updates, nil
}

// -------------------------
// PUT /api/trucks/:id
// -------------------------
func UpdateTruckHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &raw); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		updates, err := parseUpdates(raw)
		if err != nil {
			return err
		}

		before, err := findTruck(c.Params("id"))
		if err != nil {
			return err
		}

		updates["updated_at"] = time.Now().UTC()
		if err := database.DB.Model(&models.Truck{}).Where("id = ?", before.ID).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update truck: "+err.Error())
		}

		after, err := findTruck(before.ID)
		if err != nil {
			return err
		}

		metrics.TruckMutationsTotal.WithLabelValues("update").Inc()
		logAudit(audit.LogOptions{
			UserName:    auth.CurrentUsername(c),
			EntityType:  models.EntityTruck,
			EntityID:    after.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Truck updated: %s (%s)", after.ShippingNo, after.Terminal),
			Before:      before,
			After:       after,
		})

		return c.JSON(after)
	}
}

// -------------------------
// DELETE /api/trucks/:id
// -------------------------
func DeleteTruckHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		truck, err := findTruck(c.Params("id"))
		if err != nil {
			return err
		}

		res := database.DB.Delete(&models.Truck{}, "id = ?", truck.ID)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete truck: "+res.Error.Error())
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Truck not found")
		}

		metrics.TruckMutationsTotal.WithLabelValues("delete").Inc()
		logAudit(audit.LogOptions{
			UserName:    auth.CurrentUsername(c),
			EntityType:  models.EntityTruck,
			EntityID:    truck.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Truck deleted: %s (%s)", truck.ShippingNo, truck.Terminal),
			Before:      truck,
		})

		return c.JSON(fiber.Map{"message": "Truck deleted successfully"})
	}
}

// PATCH /api/trucks/:id/status?status_type=preparation|loading&status=...
func UpdateStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var column string
		switch c.Query("status_type") {
		case "preparation":
			column = "status_preparation"
		case "loading":
			column = "status_loading"
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Invalid status type")
		}

		status := models.TruckStatus(c.Query("status"))
		if !status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid status value")
		}

		before, err := findTruck(c.Params("id"))
		if err != nil {
			return err
		}

		err = database.DB.Model(&models.Truck{}).Where("id = ?", before.ID).Updates(map[string]any{
			column:       status,
			"updated_at": time.Now().UTC(),
		}).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update status: "+err.Error())
		}

		after, err := findTruck(before.ID)
		if err != nil {
			return err
		}

		metrics.TruckMutationsTotal.WithLabelValues("status").Inc()
		logAudit(audit.LogOptions{
			UserName:    auth.CurrentUsername(c),
			EntityType:  models.EntityTruck,
			EntityID:    after.ID,
			Action:      models.AuditActionStatus,
			Description: fmt.Sprintf("Truck %s %s set to %s", after.ShippingNo, c.Query("status_type"), status),
			Before:      before,
			After:       after,
		})

		return c.JSON(after)
	}
}
