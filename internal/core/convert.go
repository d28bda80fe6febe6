package core

// convert.go turns loosely typed spreadsheet cells into Go values.
//
// Cells arrive as strings (xlsx, JSON strings), float64 (JSON numbers) or
// bool. These helpers handle the messy reality of human-authored exports:
//   - Date serials next to US, EU and ISO date strings
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, active/closed, 1/0)
//   - Excel formula prefixes (="value")

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// serialEpoch is day zero of spreadsheet date serials.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxDateSerial is 9999-12-31. Larger numbers are not dates.
const maxDateSerial = 2958465

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// CellString renders a cell as trimmed text.
// Whole floats print without a fraction so 1001.0 becomes "1001".
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// isBlank reports whether a cell carries no value.
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return CleanCell(x) == ""
	default:
		return false
	}
}

// ParseNumber converts a cell to float64.
// Handles currency symbols, thousands separators, and accounting format
// (parentheses for negative).
func ParseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		return 0, false
	}

	s := CellString(v)
	if s == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInt converts a cell to an integer. Fractional values are rejected.
func ParseInt(v any) (int, bool) {
	f, ok := ParseNumber(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// ParseBool converts a cell to a boolean.
// Accepts true/false, yes/no, t/f, y/n, 1/0 and the store status words
// active/open and inactive/closed.
func ParseBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}

	switch strings.ToLower(CellString(v)) {
	case "true", "t", "yes", "y", "1", "active", "open":
		return true, true
	case "false", "f", "no", "n", "0", "inactive", "closed":
		return false, true
	default:
		return false, false
	}
}

// ParseDate normalizes a date cell to YYYY-MM-DD.
//
// Numbers (and numeric strings) within the serial range are spreadsheet
// date serials counted from 1899-12-30; the fraction is the time of day and
// is dropped. Strings are tried against the known layouts. Anything else is
// returned verbatim so the row is kept and the database decides.
func ParseDate(v any) string {
	if f, ok := v.(float64); ok {
		if d, ok := serialToDate(f); ok {
			return d
		}
		return CellString(v)
	}

	s := CellString(v)
	if s == "" {
		return ""
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if d, ok := serialToDate(f); ok {
			return d
		}
	}

	if t, ok := parseDateString(s); ok {
		return t.Format("2006-01-02")
	}
	return s
}

// serialToDate converts a spreadsheet serial to YYYY-MM-DD.
func serialToDate(serial float64) (string, bool) {
	if serial <= 0 || serial > maxDateSerial {
		return "", false
	}
	days := int(math.Floor(serial))
	return serialEpoch.AddDate(0, 0, days).Format("2006-01-02"), true
}

// parseDateString tries 4-digit year layouts first, then 2-digit layouts
// with the pivot year adjustment.
func parseDateString(s string) (time.Time, bool) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}
