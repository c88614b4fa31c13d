package auth

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// SanitizeUsername removes any HTML and trims whitespace from username
func SanitizeUsername(username string) string {
	return strip(username)
}

// SanitizeText strips markup from free text such as chat messages. The
// result is plain text for JSON clients, so entities bluemonday escapes are
// decoded again.
func SanitizeText(input string) string {
	return strip(input)
}

func strip(input string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(input)))
}
