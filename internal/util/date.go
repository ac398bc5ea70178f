package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "02.01.2006"

var (
	isoDatePattern    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	dottedDatePattern = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{2,4})`)
	excelEpoch        = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

// ParseDate understands yyyy-mm-dd (optionally followed by a time), dd.mm.yyyy,
// dd/mm/yyyy and spreadsheet serial day numbers.
func ParseDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := dottedDatePattern.FindStringSubmatch(s); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		return buildDate(year, m[2], m[1])
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 1 && serial < 100000 {
		return excelEpoch.AddDate(0, 0, int(serial)), true
	}
	return time.Time{}, false
}

func buildDate(y, m, d string) (time.Time, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeDate rewrites any recognised date as dd.mm.yyyy and leaves other text untouched.
func NormalizeDate(input string) string {
	if t, ok := ParseDate(input); ok {
		return t.Format(DateLayout)
	}
	return strings.TrimSpace(input)
}
