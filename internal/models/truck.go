package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TruckStatus string

const (
	StatusOnProcess TruckStatus = "On Process"
	StatusDelay     TruckStatus = "Delay"
	StatusFinished  TruckStatus = "Finished"
)

// TruckStatuses is the closed set of statuses, in display order.
var TruckStatuses = []TruckStatus{StatusOnProcess, StatusDelay, StatusFinished}

func (s TruckStatus) Valid() bool {
	switch s {
	case StatusOnProcess, StatusDelay, StatusFinished:
		return true
	}
	return false
}

// Truck is one truck movement on one logical date. CreatedAt carries that
// date (midnight UTC for imported rows), UpdatedAt is the last write.
type Truck struct {
	ID                string      `gorm:"primaryKey;size:36" json:"id"`
	Terminal          string      `gorm:"size:50;not null;index;index:idx_terminal_date,priority:1" json:"terminal"`
	ShippingNo        string      `gorm:"size:100;not null;index:idx_shipping_date,priority:1" json:"shipping_no"`
	DockCode          string      `gorm:"size:50;not null" json:"dock_code"`
	TruckRoute        string      `gorm:"size:100;not null" json:"truck_route"`
	PreparationStart  *string     `gorm:"size:10" json:"preparation_start"`
	PreparationEnd    *string     `gorm:"size:10" json:"preparation_end"`
	LoadingStart      *string     `gorm:"size:10" json:"loading_start"`
	LoadingEnd        *string     `gorm:"size:10" json:"loading_end"`
	StatusPreparation TruckStatus `gorm:"size:20;not null;default:'On Process';index:idx_status_date,priority:1" json:"status_preparation"`
	StatusLoading     TruckStatus `gorm:"size:20;not null;default:'On Process';index:idx_status_date,priority:2" json:"status_loading"`
	CreatedAt         time.Time   `gorm:"index:idx_terminal_date,priority:2;index:idx_shipping_date,priority:2;index:idx_status_date,priority:3" json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (t *Truck) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.StatusPreparation == "" {
		t.StatusPreparation = StatusOnProcess
	}
	if t.StatusLoading == "" {
		t.StatusLoading = StatusOnProcess
	}
	return nil
}

// MonthlyTemplate is one validated spreadsheet row. It is never persisted
// directly; confirm expands it into one Truck per day of the month.
type MonthlyTemplate struct {
	Row               int         `json:"row"`
	Year              int         `json:"year"`
	Month             int         `json:"month"`
	Terminal          string      `json:"terminal"`
	ShippingNo        string      `json:"shipping_no"`
	DockCode          string      `json:"dock_code"`
	TruckRoute        string      `json:"truck_route"`
	PreparationStart  *string     `json:"preparation_start"`
	PreparationEnd    *string     `json:"preparation_end"`
	LoadingStart      *string     `json:"loading_start"`
	LoadingEnd        *string     `json:"loading_end"`
	StatusPreparation TruckStatus `json:"status_preparation"`
	StatusLoading     TruckStatus `json:"status_loading"`
	PreviewDays       int         `json:"preview_days"`
}

// DaysInMonth returns the number of calendar days in the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayDate is midnight UTC of the given day.
func DayDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
