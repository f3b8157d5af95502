// Package schedule parses meeting-pattern descriptors and decides
// whether two patterns conflict. Everything here is pure: the same
// descriptor always parses to the same Schedule, and Overlaps has no
// side effects.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Days is a weekday set packed into a bitmask.
type Days uint8

const (
	Monday Days = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Descriptor day letters. R is Thursday and U is Sunday so every
// weekday gets a distinct letter.
var dayLetters = map[rune]Days{
	'M': Monday,
	'T': Tuesday,
	'W': Wednesday,
	'R': Thursday,
	'F': Friday,
	'S': Saturday,
	'U': Sunday,
}

// Schedule is a canonical meeting pattern: a weekday set plus a
// minute-of-day window. The window is half-open [Start, End), so a
// class ending at 11:00 does not conflict with one starting at 11:00.
type Schedule struct {
	Days  Days
	Start int // minutes from midnight, inclusive
	End   int // minutes from midnight, exclusive
}

// Parse converts a descriptor like "MWF 10:00-11:30" into a Schedule.
// The descriptor must be exactly two whitespace-separated fields: one
// or more day letters from MTWRFSU (case-insensitive), then a 24-hour
// HH:MM-HH:MM window whose start is strictly before its end.
func Parse(descriptor string) (Schedule, error) {
	fields := strings.Fields(descriptor)
	if len(fields) != 2 {
		return Schedule{}, fmt.Errorf("%w: expected DAYS HH:MM-HH:MM, got %q", ErrMalformedDescriptor, descriptor)
	}

	var days Days
	for _, r := range strings.ToUpper(fields[0]) {
		d, ok := dayLetters[r]
		if !ok {
			return Schedule{}, fmt.Errorf("%w: %q", ErrUnknownDay, string(r))
		}
		days |= d
	}

	start, end, err := parseWindow(fields[1])
	if err != nil {
		return Schedule{}, err
	}
	if start >= end {
		return Schedule{}, fmt.Errorf("%w: %s", ErrInvertedWindow, fields[1])
	}

	return Schedule{Days: days, Start: start, End: end}, nil
}

// Overlaps reports whether two schedules conflict: they share at least
// one weekday and their time windows intersect. Symmetric by
// construction.
func Overlaps(a, b Schedule) bool {
	if a.Days&b.Days == 0 {
		return false
	}
	return max(a.Start, b.Start) < min(a.End, b.End)
}

// parseWindow parses "HH:MM-HH:MM" into start/end minutes of day.
func parseWindow(window string) (int, int, error) {
	startStr, endStr, ok := strings.Cut(window, "-")
	if !ok || strings.Contains(endStr, "-") {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, window)
	}

	start, err := parseClock(startStr)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(endStr)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseClock parses a 24-hour "HH:MM" time into minutes of day.
func parseClock(clock string) (int, error) {
	hourStr, minuteStr, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}

	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}

	minute, err := strconv.Atoi(minuteStr)
	if err != nil || len(minuteStr) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}

	return hour*60 + minute, nil
}
