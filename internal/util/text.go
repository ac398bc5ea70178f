package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reFileName = regexp.MustCompile(`[<>:"/\\|?*\s]+`)
)

func StringPtr(s string) *string {
	return &s
}

func FloatPtr(f float64) *float64 {
	return &f
}

// CollapseSpaces trims and folds every whitespace run into one space.
func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func ContainsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// SanitizeFileName makes a value safe to embed in a file name.
func SanitizeFileName(input string) string {
	out := reFileName.ReplaceAllString(strings.TrimSpace(input), "_")
	out = strings.Trim(out, "._")
	if r := []rune(out); len(r) > 80 {
		out = string(r[:80])
	}
	if out == "" {
		return "untitled"
	}
	return out
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
