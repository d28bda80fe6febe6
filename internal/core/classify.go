package core

import (
	"fmt"
	"strings"
)

// classifierRule pairs a predicate over a lowercased sheet name or header
// with the entity it selects.
type classifierRule struct {
	match  func(string) bool
	entity EntityType
}

// classifierRules is evaluated in order and the first match wins.
var classifierRules = []classifierRule{
	{match: containsAny("store"), entity: EntityStore},
	{match: containsAny("shift", "schedule", "date"), entity: EntitySchedule},
	{match: containsAny("employee", "contact", "name", "phone", "email"), entity: EntityContact},
}

// classificationSampleRows is how many rows a ClassificationMiss carries.
const classificationSampleRows = 3

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// Classify maps a sheet to an entity type using its name and headers.
func Classify(sheet Sheet) (EntityType, bool) {
	candidates := make([]string, 0, len(sheet.Headers)+1)
	candidates = append(candidates, strings.ToLower(sheet.Name))
	for _, h := range sheet.Headers {
		candidates = append(candidates, strings.ToLower(h))
	}

	for _, rule := range classifierRules {
		for _, c := range candidates {
			if rule.match(c) {
				return rule.entity, true
			}
		}
	}
	return "", false
}

// Classification groups sheets by target entity.
type Classification struct {
	Groups map[EntityType][]Sheet
	Misses []ClassificationMiss
}

// ClassifySheets classifies every sheet, keeping workbook order within each
// group. Sheets with a preset Entity bypass the rules.
func ClassifySheets(sheets []Sheet) Classification {
	c := Classification{Groups: make(map[EntityType][]Sheet)}
	for _, sheet := range sheets {
		entity := sheet.Entity
		if entity == "" {
			var ok bool
			entity, ok = Classify(sheet)
			if !ok {
				c.Misses = append(c.Misses, newClassificationMiss(sheet))
				continue
			}
			sheet.Entity = entity
		}
		c.Groups[entity] = append(c.Groups[entity], sheet)
	}
	return c
}

// RequireAll returns an InputShapeError naming each registered entity that
// has no sheet.
func (c Classification) RequireAll() error {
	var missing []string
	for _, def := range All() {
		if len(c.Groups[def.Info.Type]) == 0 {
			missing = append(missing, def.Info.Section)
		}
	}
	if len(missing) > 0 {
		return &InputShapeError{Missing: missing}
	}
	return nil
}

func newClassificationMiss(sheet Sheet) ClassificationMiss {
	n := len(sheet.Rows)
	if n > classificationSampleRows {
		n = classificationSampleRows
	}
	sample := make([][]any, n)
	copy(sample, sheet.Rows[:n])
	return ClassificationMiss{
		Sheet:   sheet.Name,
		Headers: append([]string(nil), sheet.Headers...),
		Sample:  sample,
	}
}

// String is used in log lines.
func (c Classification) String() string {
	parts := make([]string, 0, len(LoadOrder)+1)
	for _, entity := range LoadOrder {
		parts = append(parts, fmt.Sprintf("%s=%d", entity, len(c.Groups[entity])))
	}
	parts = append(parts, fmt.Sprintf("unclassified=%d", len(c.Misses)))
	return strings.Join(parts, " ")
}
