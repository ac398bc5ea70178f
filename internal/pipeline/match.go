package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"worksync/internal"
	"worksync/internal/config"
)

// Matcher finds the row that already represents a task number.
type Matcher struct {
	rules     *config.Compiled
	extractor *Extractor
}

func NewMatcher(rules *config.Compiled) *Matcher {
	return &Matcher{rules: rules, extractor: NewExtractor(rules)}
}

// Match scans rows in order and returns the position of the first row whose address
// composite refers to taskNumber.
func (m *Matcher) Match(taskNumber string, rows []internal.Row) (int, bool) {
	if taskNumber == "" {
		return 0, false
	}
	for i, row := range rows {
		if m.refersTo(row.Get(internal.ColAddress), taskNumber) {
			return i, true
		}
	}
	return 0, false
}

func (m *Matcher) refersTo(composite, taskNumber string) bool {
	if composite == "" {
		return false
	}
	if m.rules.MatchMode == config.MatchSubstring {
		return strings.Contains(composite, taskNumber)
	}
	if own := m.extractor.TaskNumber(composite); own != "" {
		return own == taskNumber
	}
	return containsNumber(composite, taskNumber)
}

// containsNumber reports whether number occurs in text with no digit directly before or after it.
func containsNumber(text, number string) bool {
	offset := 0
	for {
		i := strings.Index(text[offset:], number)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(number)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsDigit(before) && !unicode.IsDigit(after) {
			return true
		}
		offset = start + 1
	}
}
