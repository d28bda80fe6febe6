// Package tables registers the roster entities with the core registry.
// Import it for side effects before running an import:
//
//	import _ "github.com/JonMunkholm/rosterload/internal/core/tables"
package tables

import (
	"fmt"

	"github.com/JonMunkholm/rosterload/internal/core"
)

func init() {
	registerStores()
	registerContacts()
	registerSchedules()
}

// nullable maps empty text to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// derefTime maps a parsed clock time to a bind value.
func derefTime(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// intField reads an integer field. A present but unparseable value is an
// error; an absent one is zero.
func intField(f core.Fields, name string) (int, error) {
	if !f.Has(name) {
		return 0, nil
	}
	n, ok := f.Int(name)
	if !ok {
		return 0, fmt.Errorf("%s: %q is not a whole number", name, f.String(name))
	}
	return n, nil
}
