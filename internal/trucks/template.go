package trucks

import (
	"bytes"
	"fmt"

	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/importer"
	"truck-tracker-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	templateSheet     = "Template"
	instructionsSheet = "Instructions"
	templateFilename  = "truck_monthly_import_template.xlsx"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var templateSamples = [][]string{
	{"2024-01", "A", "SHP001", "DOCK-A1", "Bangkok-Chonburi", "08:00", "08:30", "09:00", "10:00", "Finished", "Finished"},
	{"2024-02", "B", "SHP002", "DOCK-B1", "Bangkok-Rayong", "09:00", "09:30", "10:00", "", "Finished", "On Process"},
	{"2024-03", "C", "SHP003", "DOCK-C1", "Bangkok-Pattaya", "10:00", "", "", "", "On Process", "On Process"},
}

var templateInstructions = []string{
	"1. Fill in the Template sheet with your monthly truck data",
	"2. Required fields: Month, Terminal, Shipping No, Dock Code, Route",
	"3. Month format: YYYY-MM (e.g., 2024-01 for January 2024)",
	"4. Optional fields: Time fields and Status fields",
	`5. Valid status values: "On Process", "Delay", "Finished"`,
	"6. Time format: HH:MM (24-hour format)",
	"7. Each row will create daily records for the entire month",
	"8. Save the file and upload through the Management page",
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// BuildTemplate returns the import workbook: a styled Template sheet with
// sample rows and an Instructions sheet.
func BuildTemplate() (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return nil, err
	}

	header := toRow(importer.TemplateColumns)
	if err := f.SetSheetRow(templateSheet, "A1", &header); err != nil {
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2196F3"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(importer.TemplateColumns))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(templateSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}

	for _, w := range []struct {
		from, to string
		width    float64
	}{
		{"A", "D", 12},
		{"E", "E", 20},
		{"F", lastCol, 12},
	} {
		if err := f.SetColWidth(templateSheet, w.from, w.to, w.width); err != nil {
			return nil, err
		}
	}

	for i, sample := range templateSamples {
		row := toRow(sample)
		if err := f.SetSheetRow(templateSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return nil, err
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(instructionsSheet, "A1", "Monthly Import Instructions:"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(instructionsSheet, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}
	for i, line := range templateInstructions {
		if err := f.SetCellValue(instructionsSheet, fmt.Sprintf("A%d", i+3), line); err != nil {
			return nil, err
		}
	}

	return f.WriteToBuffer()
}

// GET /api/trucks/template
func TemplateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		buf, err := BuildTemplate()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate template: "+err.Error())
		}

		zap.L().Debug("import template generated",
			zap.String("user", auth.CurrentUsername(c)),
			zap.Int("bytes", buf.Len()),
		)

		c.Set(fiber.HeaderContentType, xlsxContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, templateFilename))
		c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		c.Set(fiber.HeaderAccessControlExposeHeaders, fiber.HeaderContentDisposition)
		return c.Send(buf.Bytes())
	}
}

type TemplateJSON struct {
	Headers      []string            `json:"headers"`
	SampleData   []map[string]string `json:"sample_data"`
	Instructions TemplateGuide       `json:"instructions"`
}

type TemplateGuide struct {
	MonthlyImport string               `json:"monthly_import"`
	DateFormat    string               `json:"date_format"`
	TimeFormat    string               `json:"time_format"`
	StatusValues  []models.TruckStatus `json:"status_values"`
}

// GET /api/trucks/template/json
func TemplateJSONHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sample := make(map[string]string, len(importer.TemplateColumns))
		for i, col := range importer.TemplateColumns {
			sample[col] = templateSamples[0][i]
		}

		return c.JSON(TemplateJSON{
			Headers:    importer.TemplateColumns,
			SampleData: []map[string]string{sample},
			Instructions: TemplateGuide{
				MonthlyImport: "Each row creates daily records for the entire month",
				DateFormat:    "YYYY-MM (e.g., 2024-01 for January 2024)",
				TimeFormat:    "HH:MM (24-hour format)",
				StatusValues:  models.TruckStatuses,
			},
		})
	}
}
