package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrAlreadyUndone = errors.New("this action has already been undone")
	ErrNotUndoable   = errors.New("this action cannot be undone")
)

type LogOptions struct {
	UserName    string
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	return writeLog(database.DB, opts)
}

func writeLog(db *gorm.DB, opts LogOptions) error {
	log := models.AuditLog{
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := db.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log could not be saved: %w", err)
	}
	return nil
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// UndoLog reverts a truck write and records the reversal as a new log entry.
func UndoLog(logID uint, userName string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var log models.AuditLog
		if err := tx.First(&log, "id = ?", logID).Error; err != nil {
			return fmt.Errorf("log not found: %w", err)
		}
		if log.IsUndone {
			return ErrAlreadyUndone
		}
		if log.EntityType != models.EntityTruck {
			return ErrNotUndoable
		}

		switch log.Action {
		case models.AuditActionCreate:
			if err := tx.Delete(&models.Truck{}, "id = ?", log.EntityID).Error; err != nil {
				return fmt.Errorf("truck could not be deleted: %w", err)
			}

		case models.AuditActionUpdate, models.AuditActionStatus:
			before, err := decodeTruck(log.BeforeData)
			if err != nil {
				return err
			}
			res := tx.Model(&models.Truck{}).Where("id = ?", log.EntityID).Updates(map[string]interface{}{
				"terminal":           before.Terminal,
				"shipping_no":        before.ShippingNo,
				"dock_code":          before.DockCode,
				"truck_route":        before.TruckRoute,
				"preparation_start":  before.PreparationStart,
				"preparation_end":    before.PreparationEnd,
				"loading_start":      before.LoadingStart,
				"loading_end":        before.LoadingEnd,
				"status_preparation": before.StatusPreparation,
				"status_loading":     before.StatusLoading,
			})
			if res.Error != nil {
				return fmt.Errorf("truck could not be restored: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("truck %s no longer exists", log.EntityID)
			}

		case models.AuditActionDelete:
			before, err := decodeTruck(log.BeforeData)
			if err != nil {
				return err
			}
			if err := tx.Create(before).Error; err != nil {
				return fmt.Errorf("truck could not be recreated: %w", err)
			}

		default:
			return ErrNotUndoable
		}

		now := time.Now().UTC()
		log.IsUndone = true
		log.UndoneBy = &userName
		log.UndoneAt = &now
		if err := tx.Save(&log).Error; err != nil {
			return fmt.Errorf("log could not be updated: %w", err)
		}

		return writeLog(tx, LogOptions{
			UserName:    userName,
			EntityType:  log.EntityType,
			EntityID:    log.EntityID,
			Action:      models.AuditActionUndo,
			Description: "Undone: " + log.Description,
			Before:      json.RawMessage(log.AfterData),
			After:       json.RawMessage(log.BeforeData),
		})
	})
}

func decodeTruck(data string) (*models.Truck, error) {
	var t models.Truck
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("snapshot could not be decoded: %w", err)
	}
	if t.ID == "" {
		return nil, errors.New("snapshot has no truck")
	}
	return &t, nil
}
