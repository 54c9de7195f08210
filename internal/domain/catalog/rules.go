package catalog

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeTag turns a genre label into its URL form: trimmed, lower-case,
// whitespace runs collapsed to a single hyphen.
func NormalizeTag(tag string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(tag)), "-")
}

// DisplayTag is the inverse used for page titles: hyphens become spaces, upper-cased.
func DisplayTag(urlTag string) string {
	return strings.ToUpper(strings.ReplaceAll(urlTag, "-", " "))
}

// TotalPages rounds total/perPage up. perPage <= 0 yields 0.
func TotalPages(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// PageOffset converts a 1-based page number into a row offset; pages below 1 count as 1.
func PageOffset(page int, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}
