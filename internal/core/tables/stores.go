package tables

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/rosterload/internal/core"
)

var storeColumns = []string{
	"store_number", "name", "address", "city", "state", "zip_code", "phone", "is_active",
}

// storeRules are evaluated in order. The bare "number" and "store"
// fallbacks must stay last.
var storeRules = []core.FieldRule{
	{Field: "store_number", Contains: []string{"store", "number"}},
	{Field: "store_number", Words: []string{"store", "id"}},
	{Field: "store_number", Words: []string{"store", "no"}},
	{Field: "zip_code", Contains: []string{"zip"}},
	{Field: "zip_code", Contains: []string{"postal"}},
	{Field: "phone", Contains: []string{"phone"}},
	{Field: "phone", Words: []string{"tel"}},
	{Field: "address", Contains: []string{"address"}},
	{Field: "city", Words: []string{"city"}},
	{Field: "state", Words: []string{"state"}},
	{Field: "is_active", Contains: []string{"active"}},
	{Field: "is_active", Words: []string{"status"}},
	{Field: "name", Contains: []string{"name"}},
	{Field: "store_number", Words: []string{"number"}},
	{Field: "store_number", Words: []string{"store"}},
}

func registerStores() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Type:        core.EntityStore,
			Table:       "stores",
			Label:       "Stores",
			Section:     "stores",
			ConflictKey: "store_number",
			OrderBy:     "store_number",
		},
		Rules:   storeRules,
		Build:   buildStore,
		Columns: storeColumns,
		Row: func(rec any) []any {
			s := rec.(core.Store)
			return []any{
				s.StoreNumber,
				nullable(s.Name),
				nullable(s.Address),
				nullable(s.City),
				nullable(s.State),
				nullable(s.ZipCode),
				nullable(s.Phone),
				s.IsActive,
			}
		},
		Key: func(rec any) string {
			return strconv.Itoa(rec.(core.Store).StoreNumber)
		},
	})
}

func buildStore(f core.Fields) (any, error) {
	number, err := intField(f, "store_number")
	if err != nil {
		return nil, err
	}

	active := true
	if f.Has("is_active") {
		if v, ok := f.Bool("is_active"); ok {
			active = v
		}
	}

	return core.Store{
		StoreNumber: number,
		Name:        f.String("name"),
		Address:     f.String("address"),
		City:        f.String("city"),
		State:       NormalizeUsState(f.String("state")),
		ZipCode:     normalizeZip(f.String("zip_code")),
		Phone:       core.NormalizePhone(f.String("phone")),
		IsActive:    active,
	}, nil
}

// normalizeZip restores leading zeros that spreadsheets strip from
// numeric ZIP codes.
func normalizeZip(s string) string {
	if s == "" || len(s) >= 5 {
		return s
	}
	if _, err := strconv.Atoi(s); err != nil {
		return s
	}
	return strings.Repeat("0", 5-len(s)) + s
}
