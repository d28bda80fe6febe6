package tables

import "github.com/JonMunkholm/rosterload/internal/core"

var contactColumns = []string{"name", "phone", "email", "status", "priority", "notes"}

var contactRules = []core.FieldRule{
	{Field: "phone", Contains: []string{"phone"}},
	{Field: "phone", Contains: []string{"mobile"}},
	{Field: "phone", Contains: []string{"cell"}},
	{Field: "phone", Words: []string{"tel"}},
	{Field: "email", Contains: []string{"mail"}},
	{Field: "status", Words: []string{"status"}},
	{Field: "priority", Contains: []string{"priority"}},
	{Field: "notes", Contains: []string{"note"}},
	{Field: "notes", Contains: []string{"comment"}},
	{Field: "employee_id", Words: []string{"id"}},
	{Field: "employee_id", Contains: []string{"employee number"}},
	{Field: "role", Contains: []string{"role"}},
	{Field: "role", Contains: []string{"position"}},
	{Field: "role", Contains: []string{"title"}},
	{Field: "store_number", Contains: []string{"store"}},
	{Field: "name", Contains: []string{"name"}},
	{Field: "name", Contains: []string{"employee"}},
	{Field: "name", Contains: []string{"contact"}},
}

func registerContacts() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Type:        core.EntityContact,
			Table:       "contacts",
			Label:       "Contacts",
			Section:     "employees",
			ConflictKey: "phone",
			OrderBy:     "name",
		},
		Rules:   contactRules,
		Build:   buildContact,
		Columns: contactColumns,
		Row: func(rec any) []any {
			c := rec.(core.Contact)
			return []any{
				c.Name,
				c.Phone,
				nullable(c.Email),
				c.Status,
				c.Priority,
				nullable(c.Notes),
			}
		},
		Key: func(rec any) string {
			return rec.(core.Contact).Phone
		},
	})
}

// buildContact folds employee id, role and store into notes and falls
// back to a placeholder phone when none is given.
func buildContact(f core.Fields) (any, error) {
	name := f.String("name")
	notes := f.String("notes")
	store := f.String("store_number")

	employeeID := f.String("employee_id")
	if employeeID == "" {
		employeeID = core.ExtractEmployeeID(notes)
	}
	role := f.String("role")
	if role == "" {
		role = core.ExtractRole(notes)
	}

	phone := core.NormalizePhone(f.String("phone"))
	if phone == "" {
		phone = core.PlaceholderPhone(employeeID, name, store)
	}

	return core.Contact{
		Name:        name,
		Phone:       phone,
		Email:       f.String("email"),
		Status:      core.NormalizeStatus(f.String("status")),
		Priority:    core.NormalizePriority(f.String("priority")),
		Notes:       core.ComposeNotes(notes, employeeID, role, store),
		EmployeeID:  employeeID,
		Role:        role,
		StoreNumber: store,
	}, nil
}
