package validators

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// MaxSearchLength caps free-text search terms before they reach ILIKE.
const MaxSearchLength = 100

// SanitizeString trims input, collapses inner whitespace runs and cuts it to
// maxLen runes. A maxLen of 0 disables the cut.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	return string([]rune(cleaned)[:maxLen])
}

// SearchTerm reads ?search as a sanitized term.
func SearchTerm(r *http.Request) string {
	return SanitizeString(r.URL.Query().Get("search"), MaxSearchLength)
}
