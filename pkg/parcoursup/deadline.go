package parcoursup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// frenchMonths maps the month names used by the portal, unaccented spellings included.
var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"février":   time.February,
	"fevrier":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"août":      time.August,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"décembre":  time.December,
	"decembre":  time.December,
}

// matches annotations like " (heure de Paris)"
var deadlineAnnotationRegex = regexp.MustCompile(` \([^)]*\)`)

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func parseBounded(text, field string, min, max int) (int, error) {
	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, text)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("%s %d out of range [%d, %d]", field, value, min, max)
	}
	return value, nil
}

// parseDeadline parses reply deadlines of the form "15 janvier (heure de Paris) 23:59".
// The portal omits the year, the year of `now` is assumed.
func parseDeadline(text string, now time.Time, loc *time.Location) (time.Time, error) {
	stripped := deadlineAnnotationRegex.ReplaceAllString(text, "")
	fields := strings.Fields(stripped)
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("unexpected deadline format %q", text)
	}

	month, ok := frenchMonths[strings.ToLower(fields[1])]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", fields[1])
	}

	year := now.Year()
	day, err := parseBounded(fields[0], "day", 1, daysIn(year, month))
	if err != nil {
		return time.Time{}, err
	}

	hourText, minuteText, found := strings.Cut(fields[2], ":")
	if !found {
		return time.Time{}, fmt.Errorf("unexpected time format %q", fields[2])
	}
	hour, err := parseBounded(hourText, "hour", 0, 23)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := parseBounded(minuteText, "minute", 0, 59)
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(year, month, day, hour, minute, 0, 0, loc), nil
}
