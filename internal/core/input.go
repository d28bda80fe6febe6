package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Input is a decoded payload ready for classification.
type Input struct {
	Format Format
	Sheets []Sheet
	Empty  []string // Workbook sheets skipped for lack of a header row
}

// DecodeInput detects the payload format and decodes it into sheets.
func DecodeInput(payload []byte) (*Input, error) {
	format, err := DetectFormat(payload)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatXLSX:
		sheets, empty, err := ParseWorkbook(payload)
		if err != nil {
			return nil, err
		}
		return &Input{Format: format, Sheets: sheets, Empty: empty}, nil
	default:
		sheets, err := DecodeDocument(payload)
		if err != nil {
			return nil, err
		}
		return &Input{Format: format, Sheets: sheets}, nil
	}
}

// CheckInput reports whether payload decodes and carries every required
// section, without transforming it. It returns the same ParseError or
// InputShapeError a run would fail with.
func CheckInput(payload []byte) error {
	input, err := DecodeInput(payload)
	if err != nil {
		return err
	}
	return ClassifySheets(input.Sheets).RequireAll()
}

// DecodeDocument decodes the JSON form of an import: a top-level object
// whose registered sections (stores, employees, schedules) are arrays of
// objects. Each section becomes a Sheet named after it, pre-classified to
// its entity. Headers are object keys in first-seen order. A missing or
// null section is an InputShapeError.
func DecodeDocument(payload []byte) ([]Sheet, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &ParseError{Format: "json", Err: err}
	}

	defs := All()
	var missing []string
	for _, def := range defs {
		raw, ok := doc[def.Info.Section]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			missing = append(missing, def.Info.Section)
		}
	}
	if len(missing) > 0 {
		return nil, &InputShapeError{Missing: missing}
	}

	sheets := make([]Sheet, 0, len(defs))
	for _, def := range defs {
		sheet, err := decodeSection(def.Info.Section, doc[def.Info.Section])
		if err != nil {
			return nil, &ParseError{Format: "json", Err: err}
		}
		sheet.Entity = def.Info.Type
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

// decodeSection streams an array of objects, preserving key order.
func decodeSection(name string, raw json.RawMessage) (Sheet, error) {
	sheet := Sheet{Name: name}
	dec := json.NewDecoder(bytes.NewReader(raw))

	if err := expectDelim(dec, '['); err != nil {
		return sheet, fmt.Errorf("section %q: %w", name, err)
	}

	index := make(map[string]int)
	var objects []map[string]any
	for dec.More() {
		obj, err := decodeObject(dec, func(key string) {
			if _, seen := index[key]; !seen {
				index[key] = len(sheet.Headers)
				sheet.Headers = append(sheet.Headers, key)
			}
		})
		if err != nil {
			return sheet, fmt.Errorf("section %q item %d: %w", name, len(objects)+1, err)
		}
		objects = append(objects, obj)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return sheet, fmt.Errorf("section %q: %w", name, err)
	}

	for _, obj := range objects {
		row := make([]any, len(sheet.Headers))
		for key, v := range obj {
			row[index[key]] = v
		}
		if isEmptyRow(row) {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

func decodeObject(dec *json.Decoder, onKey func(string)) (map[string]any, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	obj := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}

		key = strings.TrimSpace(key)
		onKey(key)
		obj[key] = jsonCell(v)
	}
	return obj, expectDelim(dec, '}')
}

// jsonCell keeps scalars and renders nested values as compact JSON text.
func jsonCell(v any) any {
	switch x := v.(type) {
	case nil, string, float64, bool:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(b)
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("expected %q, got end of input", want)
	}
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
