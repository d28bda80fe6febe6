package tables

import (
	"fmt"

	"github.com/JonMunkholm/rosterload/internal/core"
)

var scheduleColumns = []string{
	"store_number", "date", "employee_name", "employee_id", "role", "employee_type",
	"shift_time", "start_time", "end_time", "scheduled_hours", "notes",
}

// scheduleRules are evaluated in order. Hours precede shift so "Shift
// Hours" is a duration, and date precedes shift so "Shift Date" is a date.
var scheduleRules = []core.FieldRule{
	{Field: "store_number", Contains: []string{"store"}},
	{Field: "store_number", Contains: []string{"location"}},
	{Field: "store_number", Words: []string{"site"}},
	{Field: "store_number", Words: []string{"branch"}},
	{Field: "scheduled_hours", Contains: []string{"hour"}},
	{Field: "date", Contains: []string{"date"}},
	{Field: "date", Words: []string{"day"}},
	{Field: "shift_time", Contains: []string{"shift"}},
	{Field: "shift_time", Words: []string{"time"}},
	{Field: "employee_type", Words: []string{"type"}},
	{Field: "employee_id", Words: []string{"id"}},
	{Field: "employee_id", Contains: []string{"employee number"}},
	{Field: "role", Contains: []string{"role"}},
	{Field: "role", Contains: []string{"position"}},
	{Field: "role", Contains: []string{"title"}},
	{Field: "notes", Contains: []string{"note"}},
	{Field: "notes", Contains: []string{"comment"}},
	{Field: "employee_name", Contains: []string{"name"}},
	{Field: "employee_name", Contains: []string{"employee"}},
}

func registerSchedules() {
	core.Register(core.EntityDefinition{
		Info: core.EntityInfo{
			Type:    core.EntitySchedule,
			Table:   "store_schedules",
			Label:   "Schedules",
			Section: "schedules",
			OrderBy: "store_number",
		},
		Rules:   scheduleRules,
		Build:   buildSchedule,
		Columns: scheduleColumns,
		Row: func(rec any) []any {
			s := rec.(core.ScheduleEntry)
			return []any{
				s.StoreNumber,
				nullable(s.Date),
				nullable(s.EmployeeName),
				nullable(s.EmployeeID),
				nullable(s.Role),
				nullable(s.EmployeeType),
				nullable(s.ShiftTime),
				derefTime(s.StartTime),
				derefTime(s.EndTime),
				s.ScheduledHours,
				nullable(s.Notes),
			}
		},
	})
}

func buildSchedule(f core.Fields) (any, error) {
	number, err := intField(f, "store_number")
	if err != nil {
		return nil, err
	}

	notes := f.String("notes")
	entry := core.ScheduleEntry{
		StoreNumber:  number,
		Date:         f.Date("date"),
		EmployeeName: f.String("employee_name"),
		EmployeeID:   f.String("employee_id"),
		Role:         f.String("role"),
		EmployeeType: f.String("employee_type"),
		ShiftTime:    f.String("shift_time"),
		Notes:        notes,
	}
	if entry.EmployeeID == "" {
		entry.EmployeeID = core.ExtractEmployeeID(notes)
	}
	if entry.Role == "" {
		entry.Role = core.ExtractRole(notes)
	}

	shift, parsed := core.ParseShiftRange(entry.ShiftTime)
	if parsed {
		entry.StartTime = &shift.Start
		entry.EndTime = &shift.End
	}

	switch {
	case f.Has("scheduled_hours"):
		hours, ok := f.Float("scheduled_hours")
		if !ok {
			return nil, fmt.Errorf("scheduled_hours: %q is not a number", f.String("scheduled_hours"))
		}
		entry.ScheduledHours = hours
	case parsed:
		entry.ScheduledHours = shift.Hours()
	}

	return entry, nil
}
