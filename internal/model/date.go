package model

import "time"

// Epsilon is the tolerance below which money amounts and quantities are
// treated as zero.
const Epsilon = 0.01

// DateLayout is the civil-date format used on the command line and in CSV files.
const DateLayout = "2006-01-02"

// unixJulianDay is the Julian day number of 1970-01-01T00:00:00Z.
const unixJulianDay = 2440587.5

// Date returns midnight UTC of the given civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's civil date.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// JulianDay returns t as a fractional Julian day.
func JulianDay(t time.Time) float64 {
	return float64(t.UnixNano())/float64(24*time.Hour) + unixJulianDay
}

// DaysBetween is the Julian-day difference between the civil dates of from and to.
func DaysBetween(from, to time.Time) float64 {
	return JulianDay(StartOfDay(to)) - JulianDay(StartOfDay(from))
}

// ParseDate parses a YYYY-MM-DD civil date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
