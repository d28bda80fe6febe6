package core

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	employeeIDRe = regexp.MustCompile(`(?i)employee\s*id\s*[:#]?\s*(\d+)`)
	roleRe       = regexp.MustCompile(`(?i)role\s*:\s*([^,;|\n]+)`)
)

// contactKeySpace namespaces the v5 UUIDs used for contacts without a phone.
var contactKeySpace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("rosterload/contact"))

// ExtractEmployeeID returns the digits following an "Employee ID" label.
func ExtractEmployeeID(notes string) string {
	m := employeeIDRe.FindStringSubmatch(notes)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractRole returns the text following a "Role:" label up to the next
// delimiter.
func ExtractRole(notes string) string {
	m := roleRe.FindStringSubmatch(notes)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ComposeNotes appends labelled employee metadata to existing notes so
// ExtractEmployeeID and ExtractRole can recover it. Labels already present
// in notes are not repeated.
func ComposeNotes(notes, employeeID, role, store string) string {
	var parts []string
	if employeeID != "" && ExtractEmployeeID(notes) == "" {
		parts = append(parts, "Employee ID: "+employeeID)
	}
	if role != "" && ExtractRole(notes) == "" {
		parts = append(parts, "Role: "+role)
	}
	if store != "" && !strings.Contains(strings.ToLower(notes), "store:") {
		parts = append(parts, "Store: "+store)
	}
	if len(parts) == 0 {
		return notes
	}

	meta := strings.Join(parts, ", ")
	if strings.TrimSpace(notes) == "" {
		return meta
	}
	return strings.TrimSpace(notes) + ", " + meta
}

// NormalizePhone keeps digits and a leading '+'. Ten-digit numbers get a +1
// prefix and eleven-digit numbers starting with 1 get a '+'.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "" || out == "+" {
		return ""
	}
	if strings.HasPrefix(out, "+") {
		return out
	}

	switch {
	case len(out) == 10:
		return "+1" + out
	case len(out) == 11 && out[0] == '1':
		return "+" + out
	default:
		return out
	}
}

// PlaceholderPhone derives a stable contact key for rows without a phone.
// A known employee id wins. Otherwise the key is a v5 UUID of the
// normalized name and store so re-running the same input upserts the same row.
func PlaceholderPhone(employeeID, name, store string) string {
	if employeeID != "" {
		return "emp:" + employeeID
	}
	seed := fmt.Sprintf("%s|%s", NormalizeHeader(name), strings.TrimSpace(store))
	return "anon:" + uuid.NewSHA1(contactKeySpace, []byte(seed)).String()
}
