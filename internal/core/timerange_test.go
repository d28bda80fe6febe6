package core

import "testing"

func TestParseShiftRange(t *testing.T) {
	tests := []struct {
		input string
		start string
		end   string
		hours float64
		ok    bool
	}{
		{"9:00am - 5:00pm", "09:00:00", "17:00:00", 8, true},
		{"12:00pm - 12:30pm", "12:00:00", "12:30:00", 0.5, true},
		{"12:00am - 8:00am", "00:00:00", "08:00:00", 8, true},
		{"  9:30 AM-6:15 PM ", "09:30:00", "18:15:00", 8.75, true},
		{"10:00pm - 6:00am", "22:00:00", "06:00:00", 8, true},
		{"9-5", "", "", 0, false},
		{"13:00pm - 5:00pm", "", "", 0, false},
		{"9:75am - 5:00pm", "", "", 0, false},
		{"0:30am - 5:00pm", "", "", 0, false},
		{"9:00 - 17:00", "", "", 0, false},
		{"", "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseShiftRange(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseShiftRange(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Start != tt.start || got.End != tt.end {
				t.Errorf("ParseShiftRange(%q) = %s/%s, want %s/%s", tt.input, got.Start, got.End, tt.start, tt.end)
			}
			if h := got.Hours(); h != tt.hours {
				t.Errorf("Hours() = %v, want %v", h, tt.hours)
			}
		})
	}
}
