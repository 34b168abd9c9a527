package rowparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet serial dates count days from the 1900 epoch. Excel treats
// 1900 as a leap year, so day 1 maps to 1899-12-31 and everything after
// 1900-02-28 is shifted by one more: anchoring at 1899-12-30 reproduces
// the dates users actually see.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var (
	reSlashMDY = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	reISODate  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	reDashMDY  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
)

// ParseDate turns a raw cell value into a date. It accepts spreadsheet
// serial numbers, MM/DD/YYYY, ISO strings and a set of fallback
// patterns. An explicit format (from the column mapping) is tried
// first. Returns a zero time and false when nothing parses.
func ParseDate(raw, format string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if format != "" {
		if t, ok := parseWithFormat(s, format); ok {
			return t, true
		}
	}

	// Spreadsheet serial number
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		// Guard against year-like or tiny values being read as serials.
		if serial >= 61 && serial < 200000 {
			days := int(serial)
			frac := serial - float64(days)
			t := serialEpoch.AddDate(0, 0, days)
			if frac > 0 {
				t = t.Add(time.Duration(frac * 24 * float64(time.Hour)))
			}
			return t, true
		}
	}

	// Explicit MM/DD/YYYY
	if m := reSlashMDY.FindStringSubmatch(s); m != nil {
		return makeDate(m[3], m[1], m[2])
	}

	// ISO / RFC3339
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if m := reISODate.FindStringSubmatch(s); m != nil {
		return makeDate(m[1], m[2], m[3])
	}

	// MM-DD-YYYY fallback
	if m := reDashMDY.FindStringSubmatch(s); m != nil {
		return makeDate(m[3], m[1], m[2])
	}

	return time.Time{}, false
}

// parseWithFormat handles the human-readable formats sessions configure.
func parseWithFormat(s, format string) (time.Time, bool) {
	var layout string
	switch strings.ToUpper(format) {
	case "MM/DD/YYYY":
		layout = "1/2/2006"
	case "DD/MM/YYYY":
		layout = "2/1/2006"
	case "YYYY-MM-DD":
		layout = "2006-1-2"
	default:
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func makeDate(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

// ParsePeriod normalizes a period cell ("2024-01", "01/2024" or any
// parseable date) to YYYY-MM. Empty result means no period.
func ParsePeriod(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := regexp.MustCompile(`^(\d{4})-(\d{1,2})$`).FindStringSubmatch(s); m != nil {
		mo, _ := strconv.Atoi(m[2])
		if mo >= 1 && mo <= 12 {
			return m[1] + "-" + pad2(mo)
		}
	}
	if m := regexp.MustCompile(`^(\d{1,2})/(\d{4})$`).FindStringSubmatch(s); m != nil {
		mo, _ := strconv.Atoi(m[1])
		if mo >= 1 && mo <= 12 {
			return m[2] + "-" + pad2(mo)
		}
	}
	if t, ok := ParseDate(s, ""); ok {
		return t.Format("2006-01")
	}
	return ""
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
