package core

import "time"

// AgeOf returns the whole years elapsed between the date in dateStr and asOf.
// The second result is false when dateStr is empty or cannot be parsed.
func AgeOf(dateStr string, asOf time.Time) (int, bool) {
	t, ok := ParseLooseDate(dateStr)
	if !ok {
		return 0, false
	}
	age := asOf.Year() - t.Year()
	if asOf.Month() < t.Month() || (asOf.Month() == t.Month() && asOf.Day() < t.Day()) {
		age--
	}
	return age, true
}
