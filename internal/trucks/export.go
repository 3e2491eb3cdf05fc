package trucks

import (
	"fmt"
	"strings"
	"time"

	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const utf8BOM = "\uFEFF"

var exportHeaders = []string{
	"ID", "Terminal", "Shipping No", "Dock Code", "Truck Route",
	"Prep Start", "Prep End", "Loading Start", "Loading End",
	"Prep Status", "Loading Status", "Created Date", "Updated Date",
}

// csvCell quotes values that are empty or contain a comma. Embedded quotes
// are written as-is.
func csvCell(v string) string {
	if v == "" || strings.Contains(v, ",") {
		return `"` + v + `"`
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateOnly(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// BuildCSV renders trucks with a header row, prefixed by a UTF-8 BOM.
func BuildCSV(trucks []models.Truck) string {
	var b strings.Builder
	b.WriteString(utf8BOM)
	b.WriteString(strings.Join(exportHeaders, ","))

	cells := make([]string, len(exportHeaders))
	for _, t := range trucks {
		values := [...]string{
			t.ID,
			t.Terminal,
			t.ShippingNo,
			t.DockCode,
			t.TruckRoute,
			deref(t.PreparationStart),
			deref(t.PreparationEnd),
			deref(t.LoadingStart),
			deref(t.LoadingEnd),
			string(t.StatusPreparation),
			string(t.StatusLoading),
			dateOnly(t.CreatedAt),
			dateOnly(t.UpdatedAt),
		}
		for i, v := range values {
			cells[i] = csvCell(v)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, ","))
	}
	return b.String()
}

// GET /api/trucks/export
func ExportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := ParseFilter(c)
		if err != nil {
			return err
		}

		trucks := make([]models.Truck, 0)
		err = filter.Apply(database.DB.WithContext(c.UserContext()).Model(&models.Truck{})).
			Order("created_at DESC").
			Find(&trucks).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Export failed: "+err.Error())
		}

		content := BuildCSV(trucks)
		zap.L().Info("trucks exported",
			zap.String("user", auth.CurrentUsername(c)),
			zap.Int("records", len(trucks)),
			zap.Int("bytes", len(content)),
		)

		filename := fmt.Sprintf("trucks_export_%s.csv", time.Now().UTC().Format(dateLayout))
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderAccessControlExposeHeaders, fiber.HeaderContentDisposition)
		return c.SendString(content)
	}
}
