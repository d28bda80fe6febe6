package tables

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/rosterload/internal/core"
)

func strPtr(s string) *string { return &s }

func definition(t *testing.T, entity core.EntityType) core.EntityDefinition {
	t.Helper()
	def, ok := core.Get(entity)
	require.True(t, ok, "%s not registered", entity)
	return def
}

func TestRegisteredInLoadOrder(t *testing.T) {
	defs := core.All()
	require.Len(t, defs, 3)
	for i, entity := range core.LoadOrder {
		assert.Equal(t, entity, defs[i].Info.Type)
		assert.Len(t, defs[i].Row(mustBuild(t, defs[i])), len(defs[i].Columns), "%s row width", entity)
	}
}

// mustBuild returns a minimal valid record of def's entity.
func mustBuild(t *testing.T, def core.EntityDefinition) any {
	t.Helper()
	rec, err := def.Build(core.Fields{"store_number": "1", "name": "x", "phone": "5125550100"})
	require.NoError(t, err)
	return rec
}

func TestTransformStores(t *testing.T) {
	sheet := core.Sheet{
		Name:    "Stores",
		Headers: []string{"Store #", "Store Name", "Address", "City", "State", "Zip", "Phone Number", "Status"},
		Rows: [][]any{
			{"101", "Downtown", "1 Main St", "Austin", "texas", "2134", "(512) 555-0100", "Closed"},
			{"102", "Uptown", nil, nil, "tx", nil, nil, nil},
			{nil, nil, nil, nil, nil, nil, nil, nil},
			{"abc", "Broken", nil, nil, nil, nil, nil, nil},
		},
	}

	res := core.Transform(sheet, definition(t, core.EntityStore))

	want := []core.Store{
		{StoreNumber: 101, Name: "Downtown", Address: "1 Main St", City: "Austin", State: "TX", ZipCode: "02134", Phone: "+15125550100", IsActive: false},
		{StoreNumber: 102, Name: "Uptown", State: "TX", IsActive: true},
	}
	var got []core.Store
	for _, r := range res.Records {
		got = append(got, r.Value.(core.Store))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stores mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []core.TransformSkip{{Sheet: "Stores", Row: 4}}, res.Skipped)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, 5, res.Invalid[0].Row)
	assert.Contains(t, res.Invalid[0].Reason, "store_number")
}

func TestStoreWithoutNumberIsInvalid(t *testing.T) {
	sheet := core.Sheet{
		Name:    "Stores",
		Headers: []string{"Name", "City"},
		Rows:    [][]any{{"Nameless", "Austin"}},
	}

	res := core.Transform(sheet, definition(t, core.EntityStore))

	assert.Empty(t, res.Records)
	require.Len(t, res.Invalid, 1)
	assert.Contains(t, res.Invalid[0].Reason, "StoreNumber")
}

func TestTransformContacts(t *testing.T) {
	sheet := core.Sheet{
		Name:    "Employees",
		Headers: []string{"Employee Name", "Cell Phone", "Email", "Employee ID", "Position", "Store #", "Notes", "Priority"},
		Rows: [][]any{
			{"Jane Doe", "512-555-0100", "jane@example.com", 1001.0, "Manager", "101", "Prefers mornings", "HIGH"},
			{"No Phone", nil, nil, "2002", nil, nil, nil, nil},
		},
	}

	res := core.Transform(sheet, definition(t, core.EntityContact))
	require.Empty(t, res.Invalid)
	require.Len(t, res.Records, 2)

	jane := res.Records[0].Value.(core.Contact)
	assert.Equal(t, "+15125550100", jane.Phone)
	assert.Equal(t, core.StatusActive, jane.Status)
	assert.Equal(t, core.PriorityHigh, jane.Priority)
	assert.Equal(t, "Prefers mornings, Employee ID: 1001, Role: Manager, Store: 101", jane.Notes)
	assert.Equal(t, "1001", core.ExtractEmployeeID(jane.Notes))
	assert.Equal(t, "Manager", core.ExtractRole(jane.Notes))

	noPhone := res.Records[1].Value.(core.Contact)
	assert.Equal(t, "emp:2002", noPhone.Phone)
}

func TestContactNotesExtraction(t *testing.T) {
	rec, err := buildContact(core.Fields{
		"name":  "Sam",
		"notes": "Employee ID: 42, Role: Cashier",
	})
	require.NoError(t, err)

	c := rec.(core.Contact)
	assert.Equal(t, "42", c.EmployeeID)
	assert.Equal(t, "Cashier", c.Role)
	assert.Equal(t, "emp:42", c.Phone)
	assert.Equal(t, "Employee ID: 42, Role: Cashier", c.Notes)
}

func TestContactPlaceholderIsDeterministic(t *testing.T) {
	build := func(name string) string {
		rec, err := buildContact(core.Fields{"name": name, "store_number": "7"})
		require.NoError(t, err)
		return rec.(core.Contact).Phone
	}

	first := build("José Pérez")
	assert.True(t, strings.HasPrefix(first, "anon:"), first)
	assert.Equal(t, first, build("  jose perez "))
	assert.NotEqual(t, first, build("Someone Else"))
}

func TestContactWithoutNameIsInvalid(t *testing.T) {
	sheet := core.Sheet{
		Name:    "Employees",
		Headers: []string{"Phone", "Status"},
		Rows:    [][]any{{"5125550100", "inactive"}},
	}

	res := core.Transform(sheet, definition(t, core.EntityContact))

	assert.Empty(t, res.Records)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, 2, res.Invalid[0].Row)
}

func TestTransformSchedules(t *testing.T) {
	sheet := core.Sheet{
		Name:    "Schedule",
		Headers: []string{"Store", "Date", "Employee", "Shift", "Type", "Notes"},
		Rows: [][]any{
			{"101", 44927.0, "Jane Doe", "9:00am - 5:00pm", "Full Time", "Role: Lead"},
			{"101", "01/02/2023", "Sam", "9-5", nil, nil},
			{"101", "2023-01-03", "Ana", "10:00pm - 6:00am", nil, nil},
		},
	}

	res := core.Transform(sheet, definition(t, core.EntitySchedule))
	require.Empty(t, res.Invalid)

	want := []core.ScheduleEntry{
		{
			StoreNumber: 101, Date: "2023-01-01", EmployeeName: "Jane Doe", Role: "Lead",
			EmployeeType: "Full Time", ShiftTime: "9:00am - 5:00pm",
			StartTime: strPtr("09:00:00"), EndTime: strPtr("17:00:00"), ScheduledHours: 8,
			Notes: "Role: Lead",
		},
		{StoreNumber: 101, Date: "2023-01-02", EmployeeName: "Sam", ShiftTime: "9-5"},
		{
			StoreNumber: 101, Date: "2023-01-03", EmployeeName: "Ana", ShiftTime: "10:00pm - 6:00am",
			StartTime: strPtr("22:00:00"), EndTime: strPtr("06:00:00"), ScheduledHours: 8,
		},
	}
	var got []core.ScheduleEntry
	for _, r := range res.Records {
		got = append(got, r.Value.(core.ScheduleEntry))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schedules mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleExplicitHours(t *testing.T) {
	rec, err := buildSchedule(core.Fields{
		"store_number":    "5",
		"shift_time":      "9:00am - 5:00pm",
		"scheduled_hours": "7.5",
	})
	require.NoError(t, err)
	assert.Equal(t, 7.5, rec.(core.ScheduleEntry).ScheduledHours)

	_, err = buildSchedule(core.Fields{"store_number": "5", "scheduled_hours": "lots"})
	assert.Error(t, err)
}

func TestScheduleRowNullsUnparsedTimes(t *testing.T) {
	def := definition(t, core.EntitySchedule)
	rec, err := buildSchedule(core.Fields{"store_number": "5", "shift_time": "open"})
	require.NoError(t, err)

	row := def.Row(rec)
	require.Len(t, row, len(def.Columns))
	assert.Nil(t, row[1], "date")
	assert.Equal(t, "open", row[6])
	assert.Nil(t, row[7], "start_time")
	assert.Nil(t, row[8], "end_time")
	assert.Equal(t, 0.0, row[9])
}

func TestNormalizeUsState(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Texas", "TX"},
		{"  new   york ", "NY"},
		{"ca", "CA"},
		{"District of Columbia", "DC"},
		{"Ontario", "Ontario"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeUsState(tt.input); got != tt.expected {
				t.Errorf("NormalizeUsState(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeZip(t *testing.T) {
	assert.Equal(t, "02134", normalizeZip("2134"))
	assert.Equal(t, "78701", normalizeZip("78701"))
	assert.Equal(t, "78701-1234", normalizeZip("78701-1234"))
	assert.Equal(t, "K1A", normalizeZip("K1A"))
}
