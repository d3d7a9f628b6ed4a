package incident

import "strings"

// Status and Severity arrive as free text from the violations API and are
// compared case-insensitively everywhere.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPending  Status = "PENDING"
	StatusResolved Status = "RESOLVED"
	StatusUnknown  Status = "UNKNOWN"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

var knownStatuses = []Status{StatusActive, StatusPending, StatusResolved}

var knownSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)

	for _, candidate := range knownStatuses {
		if strings.EqualFold(string(candidate), s) {
			return candidate
		}
	}

	return StatusUnknown
}

func ParseSeverity(s string) Severity {
	s = strings.TrimSpace(s)

	for _, candidate := range knownSeverities {
		if strings.EqualFold(string(candidate), s) {
			return candidate
		}
	}

	return SeverityUnknown
}

// Rank orders severities from most to least urgent; unknown sorts last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}

	return 4
}

// IsOpen reports whether the status still needs attention.
func (s Status) IsOpen() bool {
	return s == StatusActive || s == StatusPending
}

type Shift string

const (
	ShiftDay     Shift = "day"
	ShiftEvening Shift = "evening"
	ShiftNight   Shift = "night"
)

// ShiftOf maps an hour of day onto the plant's three shifts:
// day 06-14, evening 14-22, night 22-06.
func ShiftOf(hour int) Shift {
	switch {
	case hour >= 6 && hour < 14:
		return ShiftDay
	case hour >= 14 && hour < 22:
		return ShiftEvening
	}

	return ShiftNight
}

func ParseShift(s string) (Shift, bool) {
	switch Shift(strings.ToLower(strings.TrimSpace(s))) {
	case ShiftDay:
		return ShiftDay, true
	case ShiftEvening:
		return ShiftEvening, true
	case ShiftNight:
		return ShiftNight, true
	}

	return "", false
}
