package livestore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the datetime format used throughout the live database
const TimeLayout = "2006-01-02 15:04:05"

var (
	datetimePattern  = regexp.MustCompile(`^(\d+)-(\d+)-(\d+) (\d+):(\d+):(\d+)$`)
	timedeltaPattern = regexp.MustCompile(`^(\d+):(\d+):(\d+)$`)
)

// IsSQLNone reports whether a cell is one of the null spellings external
// writers use: empty, "NONE", or "NULL" in any casing.
func IsSQLNone(value string) bool {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "NONE", "NULL":
		return true
	}
	return false
}

// ParseTime parses a "YYYY-MM-DD HH:MM:SS" cell. Null spellings and
// malformed values return the zero time and false.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if IsSQLNone(value) || !datetimePattern.MatchString(value) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(TimeLayout, value, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDuration parses an "HH:MM:SS" cell into a duration
func ParseDuration(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	match := timedeltaPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second, true
}

// ParseMinutes parses a decimal minute count such as "195.87" into a
// duration. Booking plug-in times are stored this way.
func ParseMinutes(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if IsSQLNone(value) {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(minutes * float64(time.Minute)), true
}

// ParseFloat parses a numeric cell, 0 for null spellings or garbage
func ParseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if IsSQLNone(value) {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseInt parses an integer cell, 0 for null spellings or garbage
func ParseInt(value string) int {
	value = strings.TrimSpace(value)
	if IsSQLNone(value) {
		return 0
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return i
}

// FormatTime renders a time in the live database layout
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// FormatDuration renders a duration as "HH:MM:SS"
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatMinutes renders a duration as the decimal minute count that
// ParseMinutes reads back. Booking plug-in times are stored this way.
func FormatMinutes(d time.Duration) string {
	return strconv.FormatFloat(d.Minutes(), 'f', 2, 64)
}
