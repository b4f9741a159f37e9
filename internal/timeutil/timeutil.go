package timeutil

import "time"

var parisLocation = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.FixedZone("Europe/Paris", 1*60*60)
	}
	return loc
}

// Now returns the current time in Europe/Paris timezone.
func Now() time.Time {
	return time.Now().In(parisLocation)
}

// Location returns the Europe/Paris location instance.
func Location() *time.Location {
	return parisLocation
}

// DayStart returns midnight of the Paris calendar day containing t.
func DayStart(t time.Time) time.Time {
	t = t.In(parisLocation)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, parisLocation)
}

// DayBounds returns the half-open interval [start, end) of the Paris day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := DayStart(t)
	return start, start.AddDate(0, 0, 1)
}

// ParseDay parses a YYYY-MM-DD date as a Paris calendar day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, parisLocation)
}

// DayKey formats t as the YYYY-MM-DD Paris day it belongs to.
func DayKey(t time.Time) string {
	return t.In(parisLocation).Format("2006-01-02")
}
