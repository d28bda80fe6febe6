package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes sheets (name -> rows, first row headers) into an
// .xlsx payload, in the given order.
func buildWorkbook(t *testing.T, order []string, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Format
		errText string
	}{
		{"xlsx", []byte("PK\x03\x04rest"), FormatXLSX, ""},
		{"json", []byte(`  {"stores": []}`), FormatJSON, ""},
		{"json with bom", []byte("\xef\xbb\xbf{}"), FormatJSON, ""},
		{"empty", []byte("  \n"), "", "empty payload"},
		{"csv", []byte("a,b\n1,2"), "", "unsupported format"},
		{"json array", []byte(`[1,2]`), "", "unsupported format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.payload)
			if tt.errText != "" {
				var perr *ParseError
				require.True(t, errors.As(err, &perr), "want *ParseError, got %v", err)
				assert.Contains(t, err.Error(), tt.errText)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWorkbook(t *testing.T) {
	payload := buildWorkbook(t, []string{"Stores", "Blank", "Schedule"}, map[string][][]any{
		"Stores": {
			{"Store #", " Name ", "City"},
			{101, "Downtown", "Austin"},
			{102, "Uptown"},
			{"", " ", ""},
			{nil, nil, nil},
		},
		"Schedule": {
			{"Location", "Date", "Employee", "Shift"},
			{101, 44927, "Jane", "9:00am - 5:00pm"},
		},
	})

	sheets, empty, err := ParseWorkbook(payload)
	require.NoError(t, err)

	assert.Equal(t, []string{"Blank"}, empty)
	require.Len(t, sheets, 2)

	stores := sheets[0]
	assert.Equal(t, "Stores", stores.Name)
	assert.Equal(t, []string{"Store #", "Name", "City"}, stores.Headers)
	require.Len(t, stores.Rows, 2, "blank rows are filtered")
	assert.Equal(t, []any{"101", "Downtown", "Austin"}, stores.Rows[0])
	assert.Equal(t, []any{"102", "Uptown", nil}, stores.Rows[1])
	assert.Empty(t, stores.Entity)

	schedule := sheets[1]
	require.Len(t, schedule.Rows, 1)
	assert.Equal(t, "44927", schedule.Rows[0][1])
	assert.Equal(t, "2023-01-01", ParseDate(schedule.Rows[0][1]))
}

func TestParseWorkbook_Corrupt(t *testing.T) {
	_, _, err := ParseWorkbook([]byte("PK\x03\x04not really a zip"))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "workbook", perr.Format)
}

func TestSheetFromRows_PadsAndTruncates(t *testing.T) {
	sheet, ok := sheetFromRows("s", [][]string{
		{"a", "b"},
		{"1"},
		{"2", "3", "extra"},
		{},
	})
	require.True(t, ok)
	assert.Equal(t, [][]any{{"1", nil}, {"2", "3"}}, sheet.Rows)

	_, ok = sheetFromRows("empty", [][]string{{"", " "}, {"x"}})
	assert.False(t, ok)
}
