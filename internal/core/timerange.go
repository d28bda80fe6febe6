package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// shiftRangeRe matches "9:00am - 5:00pm" with optional whitespace in any case.
var shiftRangeRe = regexp.MustCompile(`(?i)^\s*(\d{1,2}):(\d{2})\s*(am|pm)\s*-\s*(\d{1,2}):(\d{2})\s*(am|pm)\s*$`)

// ShiftRange is a parsed shift with both ends on the 24-hour clock.
type ShiftRange struct {
	Start string // HH:MM:00
	End   string // HH:MM:00

	startMin int
	endMin   int
}

// Hours returns the shift length. Shifts ending before they start wrap
// past midnight.
func (r ShiftRange) Hours() float64 {
	diff := r.endMin - r.startMin
	if diff < 0 {
		diff += 24 * 60
	}
	return float64(diff) / 60
}

// ParseShiftRange parses a 12-hour "H:MM(am|pm) - H:MM(am|pm)" range.
// Text that does not match, or carries an impossible clock value, returns false.
func ParseShiftRange(s string) (ShiftRange, bool) {
	m := shiftRangeRe.FindStringSubmatch(s)
	if m == nil {
		return ShiftRange{}, false
	}

	start, ok := clockMinutes(m[1], m[2], m[3])
	if !ok {
		return ShiftRange{}, false
	}
	end, ok := clockMinutes(m[4], m[5], m[6])
	if !ok {
		return ShiftRange{}, false
	}

	return ShiftRange{
		Start:    formatClock(start),
		End:      formatClock(end),
		startMin: start,
		endMin:   end,
	}, true
}

// clockMinutes converts a 12-hour clock reading to minutes after midnight.
// 12am is 00, 12pm is 12, pm hours 1-11 add 12.
func clockMinutes(hour, minute, meridiem string) (int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 1 || h > 12 {
		return 0, false
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m > 59 {
		return 0, false
	}

	pm := strings.EqualFold(meridiem, "pm")
	switch {
	case h == 12 && !pm:
		h = 0
	case h != 12 && pm:
		h += 12
	}
	return h*60 + m, true
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}
