package trucks

import (
	"context"

	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type StatsResponse struct {
	TotalTrucks      int64            `json:"total_trucks"`
	PreparationStats map[string]int64 `json:"preparation_stats"`
	LoadingStats     map[string]int64 `json:"loading_stats"`
	TerminalStats    map[string]int64 `json:"terminal_stats"`
}

type groupCount struct {
	GroupKey string
	Count    int64
}

func statusBuckets() map[string]int64 {
	m := make(map[string]int64, len(models.TruckStatuses))
	for _, s := range models.TruckStatuses {
		m[string(s)] = 0
	}
	return m
}

func countBy(ctx context.Context, filter Filter, column string) ([]groupCount, error) {
	var rows []groupCount
	err := filter.Apply(database.DB.WithContext(ctx).Model(&models.Truck{})).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

// ComputeStats runs the four aggregates concurrently.
func ComputeStats(ctx context.Context, filter Filter) (*StatsResponse, error) {
	resp := &StatsResponse{
		PreparationStats: statusBuckets(),
		LoadingStats:     statusBuckets(),
		TerminalStats:    make(map[string]int64),
	}

	var prep, load, term []groupCount
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return filter.Apply(database.DB.WithContext(gctx).Model(&models.Truck{})).Count(&resp.TotalTrucks).Error
	})
	g.Go(func() (err error) {
		prep, err = countBy(gctx, filter, "status_preparation")
		return err
	})
	g.Go(func() (err error) {
		load, err = countBy(gctx, filter, "status_loading")
		return err
	})
	g.Go(func() (err error) {
		term, err = countBy(gctx, filter, "terminal")
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range prep {
		if r.GroupKey != "" {
			resp.PreparationStats[r.GroupKey] = r.Count
		}
	}
	for _, r := range load {
		if r.GroupKey != "" {
			resp.LoadingStats[r.GroupKey] = r.Count
		}
	}
	for _, r := range term {
		if r.GroupKey != "" {
			resp.TerminalStats[r.GroupKey] = r.Count
		}
	}
	return resp, nil
}

// GET /api/stats?terminal=&date_from=&date_to=
func StatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := ParseFilter(c)
		if err != nil {
			return err
		}
		filter.StatusPreparation, filter.StatusLoading = "", ""

		stats, err := ComputeStats(c.UserContext(), filter)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch stats: "+err.Error())
		}
		return c.JSON(stats)
	}
}

type DockCodeCount struct {
	DockCode string `json:"dock_code"`
	Count    int64  `json:"count"`
}

type ShippingNoCount struct {
	ShippingNo string `json:"shipping_no"`
	Count      int64  `json:"count"`
}

type DuplicateStats struct {
	DockCodeDuplicates   []DockCodeCount   `json:"dock_code_duplicates"`
	ShippingNoDuplicates []ShippingNoCount `json:"shipping_no_duplicates"`
	TotalRecords         int64             `json:"total_records"`
}

// CountDuplicates lists dock codes and shipping numbers used by more than one row.
func CountDuplicates(db *gorm.DB) (*DuplicateStats, error) {
	out := &DuplicateStats{
		DockCodeDuplicates:   make([]DockCodeCount, 0),
		ShippingNoDuplicates: make([]ShippingNoCount, 0),
	}

	err := db.Model(&models.Truck{}).
		Select("dock_code, COUNT(*) AS count").
		Group("dock_code").
		Having("COUNT(*) > ?", 1).
		Order("dock_code").
		Scan(&out.DockCodeDuplicates).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&models.Truck{}).
		Select("shipping_no, COUNT(*) AS count").
		Group("shipping_no").
		Having("COUNT(*) > ?", 1).
		Order("shipping_no").
		Scan(&out.ShippingNoDuplicates).Error
	if err != nil {
		return nil, err
	}

	if err := db.Model(&models.Truck{}).Count(&out.TotalRecords).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GET /api/trucks/duplicate-stats
func DuplicateStatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := CountDuplicates(database.DB.WithContext(c.UserContext()))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to get duplicate stats: "+err.Error())
		}
		return c.JSON(fiber.Map{
			"success":              true,
			"duplicate_statistics": stats,
			"message":              "Showing duplicate counts, duplicates are allowed in monthly import",
		})
	}
}
