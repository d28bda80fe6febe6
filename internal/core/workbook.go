package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies the payload encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

var (
	zipMagic = []byte("PK\x03\x04")
	utf8BOM  = []byte("\xef\xbb\xbf")
)

// DetectFormat chooses between an .xlsx container and a JSON document.
func DetectFormat(payload []byte) (Format, error) {
	if bytes.HasPrefix(payload, zipMagic) {
		return FormatXLSX, nil
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(payload, utf8BOM))
	if len(trimmed) == 0 {
		return "", &ParseError{Err: errors.New("empty payload")}
	}
	if trimmed[0] == '{' {
		return FormatJSON, nil
	}
	return "", &ParseError{Err: errors.New("unsupported format")}
}

// ParseWorkbook decodes an .xlsx payload into sheets in workbook order.
//
// Row 1 of each sheet holds the headers. Cells are read raw so date cells
// arrive as serial numbers. Rows whose cells are all blank are discarded.
// Sheets without a header row are skipped and returned in empty.
func ParseWorkbook(payload []byte) (sheets []Sheet, empty []string, err error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, &ParseError{Format: "workbook", Err: err}
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, nil, &ParseError{Format: "workbook", Err: fmt.Errorf("sheet %q: %w", name, err)}
		}

		sheet, ok := sheetFromRows(name, rows)
		if !ok {
			empty = append(empty, name)
			continue
		}
		sheets = append(sheets, sheet)
	}

	return sheets, empty, nil
}

// sheetFromRows builds a Sheet from string rows, padding or truncating
// every data row to the header width.
func sheetFromRows(name string, rows [][]string) (Sheet, bool) {
	if len(rows) == 0 || isEmptyStringRow(rows[0]) {
		return Sheet{}, false
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	sheet := Sheet{Name: name, Headers: headers}
	for _, raw := range rows[1:] {
		row := make([]any, len(headers))
		for i := range row {
			if i < len(raw) {
				row[i] = cellValue(raw[i])
			}
		}
		if isEmptyRow(row) {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, true
}

// cellValue maps an empty workbook cell to nil.
func cellValue(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isEmptyStringRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// isEmptyRow reports whether every cell is nil or blank text.
func isEmptyRow(row []any) bool {
	for _, v := range row {
		if !isBlank(v) {
			return false
		}
	}
	return true
}
