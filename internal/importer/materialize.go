package importer

import (
	"context"
	"fmt"
	"time"

	"truck-tracker-backend/internal/models"

	"gorm.io/gorm"
)

type FailedImport struct {
	Template   int    `json:"template"`
	Day        *int   `json:"day,omitempty"`
	ShippingNo string `json:"shipping_no"`
	Error      string `json:"error"`
}

type Outcome struct {
	Imported int
	Created  int
	Updated  int
	Failed   []FailedImport
}

// Materialize expands every template into one truck per calendar day,
// updating the record already present for (shipping_no, date) or inserting
// a new one. Each template commits on its own; inside it every day runs in
// a savepoint so one bad day does not discard the rest.
func Materialize(ctx context.Context, db *gorm.DB, templates []models.MonthlyTemplate) Outcome {
	out := Outcome{Failed: []FailedImport{}}

	for i, tpl := range templates {
		templateNo := i + 1
		if err := ctx.Err(); err != nil {
			out.Failed = append(out.Failed, FailedImport{Template: templateNo, ShippingNo: tpl.ShippingNo, Error: err.Error()})
			continue
		}

		var imported, created int
		var dayFailures []FailedImport

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			days := models.DaysInMonth(tpl.Year, tpl.Month)
			for day := 1; day <= days; day++ {
				date := models.DayDate(tpl.Year, tpl.Month, day)

				var inserted bool
				err := tx.Transaction(func(dayTx *gorm.DB) error {
					var err error
					inserted, err = upsertDay(dayTx, tpl, date)
					return err
				})
				if err != nil {
					d := day
					dayFailures = append(dayFailures, FailedImport{
						Template:   templateNo,
						Day:        &d,
						ShippingNo: tpl.ShippingNo,
						Error:      err.Error(),
					})
					continue
				}

				imported++
				if inserted {
					created++
				}
			}
			return nil
		})
		if err != nil {
			out.Failed = append(out.Failed, FailedImport{
				Template:   templateNo,
				ShippingNo: tpl.ShippingNo,
				Error:      fmt.Sprintf("template could not be committed: %v", err),
			})
			continue
		}

		out.Imported += imported
		out.Created += created
		out.Updated += imported - created
		out.Failed = append(out.Failed, dayFailures...)
	}

	return out
}

// upsertDay reports whether a new row was inserted.
func upsertDay(tx *gorm.DB, tpl models.MonthlyTemplate, date time.Time) (bool, error) {
	var existing models.Truck
	res := tx.Where("shipping_no = ? AND created_at >= ? AND created_at < ?", tpl.ShippingNo, date, date.AddDate(0, 0, 1)).
		Order("created_at").
		Limit(1).
		Find(&existing)
	if res.Error != nil {
		return false, res.Error
	}

	now := time.Now().UTC()

	if res.RowsAffected > 0 {
		err := tx.Model(&existing).Updates(map[string]interface{}{
			"terminal":           tpl.Terminal,
			"dock_code":          tpl.DockCode,
			"truck_route":        tpl.TruckRoute,
			"preparation_start":  tpl.PreparationStart,
			"preparation_end":    tpl.PreparationEnd,
			"loading_start":      tpl.LoadingStart,
			"loading_end":        tpl.LoadingEnd,
			"status_preparation": tpl.StatusPreparation,
			"status_loading":     tpl.StatusLoading,
			"created_at":         date,
			"updated_at":         now,
		}).Error
		return false, err
	}

	truck := models.Truck{
		Terminal:          tpl.Terminal,
		ShippingNo:        tpl.ShippingNo,
		DockCode:          tpl.DockCode,
		TruckRoute:        tpl.TruckRoute,
		PreparationStart:  tpl.PreparationStart,
		PreparationEnd:    tpl.PreparationEnd,
		LoadingStart:      tpl.LoadingStart,
		LoadingEnd:        tpl.LoadingEnd,
		StatusPreparation: tpl.StatusPreparation,
		StatusLoading:     tpl.StatusLoading,
		CreatedAt:         date,
		UpdatedAt:         now,
	}
	return true, tx.Create(&truck).Error
}
