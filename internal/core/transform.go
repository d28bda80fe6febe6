package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// validate checks record structs against their `validate` tags.
var validate = validator.New(validator.WithRequiredStructEnabled())

// MaxInvalidSamples bounds the invalid rows kept per entity in a report.
var MaxInvalidSamples = 50

// Fields holds the mapped, non-blank cells of one row keyed by field name.
type Fields map[string]any

// Has reports whether the field was populated.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// String returns the field as trimmed text.
func (f Fields) String(name string) string {
	return CellString(f[name])
}

// Int returns the field as an integer.
func (f Fields) Int(name string) (int, bool) {
	v, ok := f[name]
	if !ok {
		return 0, false
	}
	return ParseInt(v)
}

// Float returns the field as a number.
func (f Fields) Float(name string) (float64, bool) {
	v, ok := f[name]
	if !ok {
		return 0, false
	}
	return ParseNumber(v)
}

// Bool returns the field as a boolean.
func (f Fields) Bool(name string) (bool, bool) {
	v, ok := f[name]
	if !ok {
		return false, false
	}
	return ParseBool(v)
}

// Date returns the field normalized by ParseDate.
func (f Fields) Date(name string) string {
	return ParseDate(f[name])
}

// InvalidRecord describes a row excluded by validation.
type InvalidRecord struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// TransformResult is the outcome of transforming one sheet.
type TransformResult struct {
	Records []Record
	Skipped []TransformSkip
	Invalid []InvalidRecord
}

// NormalizeHeader folds a header for rule matching: diacritics stripped,
// lowercased, '#' read as "number", other non-alphanumerics collapsed to
// single spaces.
func NormalizeHeader(s string) string {
	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	space := true
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == '#':
			if !space {
				b.WriteByte(' ')
			}
			b.WriteString("number ")
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Matches reports whether the rule applies to a normalized header.
func (r FieldRule) Matches(header string) bool {
	if len(r.Contains) == 0 && len(r.Words) == 0 {
		return false
	}
	for _, sub := range r.Contains {
		if !strings.Contains(header, sub) {
			return false
		}
	}
	if len(r.Words) > 0 {
		words := strings.Fields(header)
		for _, w := range r.Words {
			if !containsWord(words, w) {
				return false
			}
		}
	}
	return true
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

// MapHeaders returns the field for each header position, or "" when no
// rule matches. The first matching rule wins.
func MapHeaders(headers []string, rules []FieldRule) []string {
	fields := make([]string, len(headers))
	for i, h := range headers {
		normalized := NormalizeHeader(h)
		if normalized == "" {
			continue
		}
		for _, rule := range rules {
			if rule.Matches(normalized) {
				fields[i] = rule.Field
				break
			}
		}
	}
	return fields
}

// Transform converts the rows of a sheet into records of def's entity.
//
// Blank cells leave a field unset. When two headers map to the same field
// the first non-blank cell wins. Rows without any populated field are
// dropped; rows failing Build or struct validation are reported as invalid.
// Row numbers count data rows after blank-row filtering, starting at 2.
func Transform(sheet Sheet, def EntityDefinition) TransformResult {
	var result TransformResult
	mapping := MapHeaders(sheet.Headers, def.Rules)

	for i, row := range sheet.Rows {
		rowNum := i + 2

		fields := make(Fields, len(mapping))
		for col, field := range mapping {
			if field == "" || col >= len(row) || isBlank(row[col]) {
				continue
			}
			if fields.Has(field) {
				continue
			}
			fields[field] = row[col]
		}

		if len(fields) == 0 {
			result.Skipped = append(result.Skipped, TransformSkip{Sheet: sheet.Name, Row: rowNum})
			continue
		}

		rec, err := def.Build(fields)
		if err == nil {
			err = validateRecord(rec)
		}
		if err != nil {
			result.Invalid = append(result.Invalid, InvalidRecord{
				Sheet:  sheet.Name,
				Row:    rowNum,
				Reason: err.Error(),
			})
			continue
		}

		result.Records = append(result.Records, Record{Sheet: sheet.Name, Row: rowNum, Value: rec})
	}

	return result
}

// validateRecord runs struct validation and flattens field errors into one
// readable message.
func validateRecord(rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
