package core

// Store is one row of the stores table.
type Store struct {
	StoreNumber int `validate:"gt=0"`
	Name        string
	Address     string
	City        string
	State       string
	ZipCode     string
	Phone       string
	IsActive    bool
}

// Contact is one row of the contacts table.
// EmployeeID, Role and StoreNumber are not columns; they are folded into
// Notes and recovered from there.
type Contact struct {
	Name     string `validate:"required"`
	Phone    string `validate:"required"`
	Email    string
	Status   string `validate:"oneof=active inactive"`
	Priority string `validate:"oneof=low medium high"`
	Notes    string

	EmployeeID  string
	Role        string
	StoreNumber string
}

// ScheduleEntry is one row of the store_schedules table.
// StartTime and EndTime are nil when the shift text does not parse.
type ScheduleEntry struct {
	StoreNumber    int `validate:"gt=0"`
	Date           string
	EmployeeName   string
	EmployeeID     string
	Role           string
	EmployeeType   string
	ShiftTime      string
	StartTime      *string
	EndTime        *string
	ScheduledHours float64 `validate:"gte=0"`
	Notes          string
}

// Contact status and priority values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// NormalizeStatus lowercases a contact status. Unknown values become active.
func NormalizeStatus(s string) string {
	switch v := NormalizeHeader(s); v {
	case StatusActive, StatusInactive:
		return v
	default:
		return StatusActive
	}
}

// NormalizePriority lowercases a contact priority. Unknown values become medium.
func NormalizePriority(s string) string {
	switch v := NormalizeHeader(s); v {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return v
	default:
		return PriorityMedium
	}
}
