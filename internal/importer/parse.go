package importer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"truck-tracker-backend/internal/models"
)

// Spreadsheet column headers.
const (
	ColMonth      = "Month"
	ColTerminal   = "Terminal"
	ColShippingNo = "Shipping No"
	ColDockCode   = "Dock Code"
	ColRoute      = "Route"
	ColPrepStart  = "Prep Start"
	ColPrepEnd    = "Prep End"
	ColLoadStart  = "Load Start"
	ColLoadEnd    = "Load End"
	ColStatusPrep = "Status Prep"
	ColStatusLoad = "Status Load"
)

// RequiredColumns in the order they are reported when missing.
var RequiredColumns = []string{ColMonth, ColTerminal, ColShippingNo, ColDockCode, ColRoute}

// TemplateColumns is the full header row of the import template.
var TemplateColumns = []string{
	ColMonth, ColTerminal, ColShippingNo, ColDockCode, ColRoute,
	ColPrepStart, ColPrepEnd, ColLoadStart, ColLoadEnd,
	ColStatusPrep, ColStatusLoad,
}

var (
	monthPattern    = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	timePattern     = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{1,2})(?::(\d{1,2}))?\s*(am|pm)?$`)
	// A date followed by a clock, as written for date/time formatted cells.
	dateTimePattern = regexp.MustCompile(`^(?:\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{2,4})[ T]+(\S.*)$`)
)

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "Missing required columns: " + strings.Join(e.Columns, ", ")
}

type ParseResult struct {
	Templates            []models.MonthlyTemplate
	Errors               []string
	ColumnsFound         []string
	TotalRecordsToCreate int
}

// ParseTemplates validates the data rows below the header row. Invalid rows
// are reported in Errors and skipped; only a missing required column fails
// the whole sheet.
func ParseTemplates(rows [][]string) (*ParseResult, error) {
	result := &ParseResult{
		Templates:    []models.MonthlyTemplate{},
		Errors:       []string{},
		ColumnsFound: []string{},
	}
	if len(rows) == 0 {
		return nil, &MissingColumnsError{Columns: RequiredColumns}
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		result.ColumnsFound = append(result.ColumnsFound, h)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		tpl, err := parseRow(row, index, i+2)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Templates = append(result.Templates, tpl)
		result.TotalRecordsToCreate += tpl.PreviewDays
	}

	return result, nil
}

func parseRow(row []string, index map[string]int, rowNum int) (models.MonthlyTemplate, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok {
			return ""
		}
		return cellValue(row, i)
	}

	tpl := models.MonthlyTemplate{Row: rowNum}

	month := get(ColMonth)
	if month == "" {
		return tpl, fmt.Errorf("Row %d: Month is required", rowNum)
	}
	year, mon, ok := ParseMonth(month)
	if !ok {
		return tpl, fmt.Errorf("Row %d: Month must be in format YYYY-MM (e.g., 2024-01)", rowNum)
	}
	tpl.Year, tpl.Month = year, mon

	required := []struct {
		col string
		dst *string
	}{
		{ColTerminal, &tpl.Terminal},
		{ColShippingNo, &tpl.ShippingNo},
		{ColDockCode, &tpl.DockCode},
		{ColRoute, &tpl.TruckRoute},
	}
	for _, r := range required {
		v := get(r.col)
		if v == "" {
			return tpl, fmt.Errorf("Row %d: %s is required", rowNum, r.col)
		}
		*r.dst = v
	}

	times := []struct {
		col string
		dst **string
	}{
		{ColPrepStart, &tpl.PreparationStart},
		{ColPrepEnd, &tpl.PreparationEnd},
		{ColLoadStart, &tpl.LoadingStart},
		{ColLoadEnd, &tpl.LoadingEnd},
	}
	for _, tc := range times {
		*tc.dst = NormalizeTime(get(tc.col))
	}

	tpl.StatusPreparation = normalizeStatus(get(ColStatusPrep))
	tpl.StatusLoading = normalizeStatus(get(ColStatusLoad))

	tpl.PreviewDays = models.DaysInMonth(tpl.Year, tpl.Month)
	return tpl, nil
}

// ParseMonth accepts YYYY-M or YYYY-MM with a month in 1..12.
func ParseMonth(s string) (year, month int, ok bool) {
	m := monthPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

// NormalizeTime turns a time cell into zero-padded HH:MM. A date with a
// clock keeps only the clock, and a bare fraction of a day is read as an
// Excel time. Anything else is kept as typed; blank cells become nil.
func NormalizeTime(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}

	if out, ok := parseClock(v); ok {
		return &out
	}
	if m := dateTimePattern.FindStringSubmatch(v); m != nil {
		if out, ok := parseClock(m[1]); ok {
			return &out
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial >= 0 && serial < 1 {
		out := serialClock(serial)
		return &out
	}

	return &v
}

func parseClock(v string) (string, bool) {
	m := timePattern.FindStringSubmatch(v)
	if m == nil {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	switch strings.ToLower(m[4]) {
	case "am":
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 12 {
			h += 12
		}
	}
	if h >= 24 || minute >= 60 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, minute), true
}

// serialClock renders the wall-clock part of an Excel date/time serial.
func serialClock(serial float64) string {
	_, frac := math.Modf(serial)
	minutes := int(math.Round(frac*24*60)) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func normalizeStatus(raw string) models.TruckStatus {
	s := models.TruckStatus(strings.TrimSpace(raw))
	if s.Valid() {
		return s
	}
	return models.StatusOnProcess
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
