package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reKeyChars = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// NormalizeText lowercases the input, folds exotic spaces and the multiplication sign
// and collapses whitespace runs. Requirement parsing runs on this form.
func NormalizeText(input string) string {
	s := strings.ToLower(input)
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "×", "x", "\t", " ").Replace(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeSpaces collapses whitespace without changing case.
func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeKey reduces a header or label to lowercase words separated by single spaces.
func NormalizeKey(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = reKeyChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Humanize turns a snake_case key into a title ("conductor_size_sqmm" -> "Conductor Size Sqmm").
func Humanize(key string) string {
	parts := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
