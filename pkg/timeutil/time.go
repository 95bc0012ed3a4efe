package timeutil

import "time"

// Now returns the current time in UTC.
// Always use this instead of time.Now() to keep period math timezone-safe.
func Now() time.Time {
	return time.Now().UTC()
}

// ParseDate parses an ISO date (2006-01-02) and returns a UTC time
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// StartOfDay returns the start of the day (midnight) in UTC
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the start of the day n days after t, in UTC.
// Period bounds are always whole days, so this is the canonical way to
// build a period end from its start.
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, n)
}

// ToUTC converts a time.Time to UTC if it isn't already
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}
