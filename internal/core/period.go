package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodKey is the canonical month key of the ledger, always "MM/YYYY" when
// the input could be understood. Unrecognised input is kept verbatim.
type PeriodKey string

// looseLayouts are tried in order when a period or date value is not already
// in "M/YYYY" form.
var looseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2006",
	"Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	// Spreadsheet cells rendered by a JavaScript runtime, with the
	// "(Zone Name)" suffix stripped.
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon Jan 02 2006",
}

// NormalizePeriod converts a raw period value into its canonical key.
//
// Strings of the form "M/YYYY" get a zero-padded month. time.Time values are
// rendered as month/year. Anything else is parsed as a date; if that fails the
// original text is returned unchanged so legacy rows still form their own key.
func NormalizePeriod(v any) PeriodKey {
	switch val := v.(type) {
	case nil:
		return ""
	case PeriodKey:
		return NormalizePeriod(string(val))
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return PeriodOf(val)
	case *time.Time:
		if val == nil {
			return ""
		}
		return NormalizePeriod(*val)
	case string:
		return normalizePeriodString(val)
	default:
		return normalizePeriodString(fmt.Sprint(val))
	}
}

func normalizePeriodString(s string) PeriodKey {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Count(s, "/") == 1 {
		mm, yyyy, _ := strings.Cut(s, "/")
		mm = strings.TrimSpace(mm)
		if len(mm) < 2 {
			mm = strings.Repeat("0", 2-len(mm)) + mm
		}
		return PeriodKey(mm + "/" + strings.TrimSpace(yyyy))
	}
	if t, ok := ParseLooseDate(s); ok {
		return PeriodOf(t)
	}
	return PeriodKey(s)
}

// PeriodOf returns the canonical key of the month containing t, in t's own location.
func PeriodOf(t time.Time) PeriodKey {
	return PeriodKey(fmt.Sprintf("%02d/%04d", int(t.Month()), t.Year()))
}

// ParseLooseDate parses the date representations found in legacy
// spreadsheets and API clients.
func ParseLooseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// YearMonth splits a canonical key into year and month.
func (p PeriodKey) YearMonth() (year, month int, ok bool) {
	mm, yyyy, found := strings.Cut(string(p), "/")
	if !found {
		return 0, 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(strings.TrimSpace(yyyy))
	if err != nil || y < 1 {
		return 0, 0, false
	}
	return y, m, true
}

func (p PeriodKey) String() string { return string(p) }

// IsEmpty reports whether the key carries no period at all.
func (p PeriodKey) IsEmpty() bool { return p == "" }

// DaysInMonth returns the number of calendar days of the month named by key,
// or 0 when the key is empty or not a valid "MM/YYYY" value.
func DaysInMonth(key PeriodKey) int {
	y, m, ok := key.YearMonth()
	if !ok {
		return 0
	}
	// Day zero of the following month is the last day of this one.
	return time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
