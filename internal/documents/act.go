package documents

import (
	"strconv"
	"strings"

	"worksync/internal"
)

const completedMarker = "выполн"

// NormalizeActNumber keeps the part after the last dash and drops leading zeros and a
// trailing ".0": "01-1", "1.0" and "001" all become "1".
func NormalizeActNumber(value string) string {
	s := strings.TrimSpace(value)
	if s == "" || strings.EqualFold(s, "nan") {
		return ""
	}
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return strconv.FormatInt(int64(f), 10)
	}
	if trimmed := strings.TrimLeft(s, "0"); trimmed != "" {
		return trimmed
	}
	return s
}

// SelectActRows returns rows that are completed, carry the act number and have both dates.
func SelectActRows(rows []internal.Row, number string) []internal.Row {
	want := NormalizeActNumber(number)
	var out []internal.Row
	for _, row := range rows {
		if !strings.Contains(strings.ToLower(row.Get(internal.ColStatus)), completedMarker) {
			continue
		}
		if NormalizeActNumber(row.Get(internal.ColActNumber)) != want {
			continue
		}
		if strings.TrimSpace(row.Get(internal.ColStartDate)) == "" || strings.TrimSpace(row.Get(internal.ColEndDate)) == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}
