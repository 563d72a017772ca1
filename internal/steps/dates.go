package steps

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	monthsAgoPattern = regexp.MustCompile(`\s*(\d+)\s+months?\s+ago\s*`)
	daysAgoPattern   = regexp.MustCompile(`\s*(\d+)\s+days?\s+ago\s*`)
	anyDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
)

// ResolveDate replaces a relative date placeholder with the date it names
// relative to now. Any other value is returned unchanged.
func ResolveDate(value string, now time.Time) string {
	today := dateOnly(now)
	switch {
	case strings.Contains(value, "today"):
		return today.Format(dateLayout)
	case strings.Contains(value, "yesterday"):
		return today.AddDate(0, 0, -1).Format(dateLayout)
	}
	if m := monthsAgoPattern.FindStringSubmatch(value); m != nil {
		n, _ := strconv.Atoi(m[1])
		d := today
		for i := 0; i < n; i++ {
			d = prevMonth(d)
		}
		return d.Format(dateLayout)
	}
	if m := daysAgoPattern.FindStringSubmatch(value); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n).Format(dateLayout)
	}
	return value
}

// prevMonth moves d back one calendar month, clamping the day to the length
// of the target month.
func prevMonth(d time.Time) time.Time {
	firstOfPrev := time.Date(d.Year(), d.Month()-1, 1, 0, 0, 0, 0, d.Location())
	last := firstOfPrev.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(firstOfPrev.Year(), firstOfPrev.Month(), day, 0, 0, 0, 0, d.Location())
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ValueMatches compares an actual cell with an expected one. The expected
// keywords today, yesterday, any_date, any_string, true and false match by
// kind; any other expectation compares the string form, with NULL read as
// the empty string.
func ValueMatches(actual any, expected string, now time.Time) bool {
	switch expected {
	case "today":
		s, ok := actual.(string)
		return ok && strings.Contains(s, dateOnly(now).Format(dateLayout))
	case "yesterday":
		s, ok := actual.(string)
		return ok && strings.Contains(s, dateOnly(now).AddDate(0, 0, -1).Format(dateLayout))
	case "any_date":
		s, ok := actual.(string)
		return ok && anyDatePattern.MatchString(s)
	case "any_string":
		_, ok := actual.(string)
		return ok || actual == nil
	case "true", "false":
		switch v := actual.(type) {
		case bool:
			return v == (expected == "true")
		case string:
			return v == expected[:1]
		default:
			return false
		}
	}
	return cellString(actual) == expected
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", t)
	}
}
