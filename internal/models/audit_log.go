package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionStatus AuditAction = "status"
	AuditActionImport AuditAction = "import"
	AuditActionUndo   AuditAction = "undo"
)

const (
	EntityTruck  = "truck"
	EntityUser   = "user"
	EntityImport = "import"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Token subject; "guest_viewer" never writes.
	UserName string `gorm:"size:50;index" json:"user_name"`

	// truck, user or import (the session id)
	EntityType string `gorm:"size:20;index" json:"entity_type"`
	EntityID   string `gorm:"size:36;index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// JSON snapshots, "null" when absent
	BeforeData string `gorm:"type:text" json:"before_data"`
	AfterData  string `gorm:"type:text" json:"after_data"`

	IsUndone bool       `gorm:"default:false" json:"is_undone"`
	UndoneBy *string    `gorm:"size:50" json:"undone_by"`
	UndoneAt *time.Time `json:"undone_at"`
}
