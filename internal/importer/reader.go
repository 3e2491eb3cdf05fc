package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFile = errors.New("File must be Excel format (.xlsx or .xls)")

// IsSpreadsheetName reports whether the upload name has an .xlsx or .xls extension.
func IsSpreadsheetName(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// ReadRows returns the cells of the first worksheet, row by row. Row 0 is
// the header row.
func ReadRows(reader io.Reader, filename string) ([][]string, error) {
	if !IsSpreadsheetName(filename) {
		return nil, ErrUnsupportedFile
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(filepath.Ext(filename)) == ".xls" {
		return readXLS(data)
	}
	return readXLSX(data)
}

func readXLSX(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no worksheet found")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	raw, err := file.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	for r := range rows {
		for c := range rows[r] {
			if r >= len(raw) || c >= len(raw[r]) || raw[r][c] == rows[r][c] {
				continue
			}
			if v, ok := dateTimeCell(file, sheets[0], r, c, raw[r][c]); ok {
				rows[r][c] = v
			}
		}
	}
	return rows, nil
}

// dateTimeCell renders a numeric cell carrying a date or time number format
// as "HH:MM" (time only) or "YYYY-MM-DD HH:MM".
func dateTimeCell(file *excelize.File, sheet string, r, c int, raw string) (string, bool) {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || serial < 0 {
		return "", false
	}
	cell, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return "", false
	}
	styleID, err := file.GetCellStyle(sheet, cell)
	if err != nil {
		return "", false
	}
	style, err := file.GetStyle(styleID)
	if err != nil || !isDateTimeFormat(style) {
		return "", false
	}

	days, frac := math.Modf(serial)
	clock := serialClock(frac)
	if days == 0 {
		return clock, true
	}
	date, err := excelize.ExcelDateToTime(days, false)
	if err != nil {
		return "", false
	}
	return date.Format("2006-01-02") + " " + clock, true
}

var (
	elapsedToken      = regexp.MustCompile(`(?i)\[(h+|m+|s+)\]`)
	quotedOrBracketed = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]`)
)

// isDateTimeFormat covers the built-in date/time formats (14-22, 45-47) and
// custom formats with day, year, hour or second tokens.
func isDateTimeFormat(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		if elapsedToken.MatchString(*style.CustomNumFmt) {
			return true
		}
		f := strings.ToLower(quotedOrBracketed.ReplaceAllString(*style.CustomNumFmt, ""))
		return strings.ContainsAny(f, "dyhs")
	}
	n := style.NumFmt
	return (n >= 14 && n <= 22) || (n >= 45 && n <= 47)
}

// readXLS converts panics from the BIFF decoder on malformed uploads into errors.
func readXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("malformed xls workbook: %v", r)
		}
	}()

	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if workbook == nil || workbook.NumSheets() == 0 {
		return nil, fmt.Errorf("no worksheet found")
	}

	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("no worksheet found")
	}

	rows = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// sheetRow returns nil for rows the sheet never defined; the decoder
// dereferences a nil row for those.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
