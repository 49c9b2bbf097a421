package helpers

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute, dropping script and style bodies entirely.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// StripMarkup removes any tag left in s and decodes entities, so the result is
// plain text again. bluemonday escapes the text it keeps, hence the unescape.
func StripMarkup(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return html.UnescapeString(StrictHTMLPolicy().Sanitize(s))
}

// CollapseWhitespace replaces every run of whitespace with one space and trims
// both ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RuneWindow returns the runes of s in [start, end). end <= 0 or past the end
// of s means "to the end"; start past the end yields "".
func RuneWindow(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	runes := []rune(s)
	if start >= len(runes) {
		return ""
	}
	if end <= 0 || end > len(runes) {
		end = len(runes)
	}
	if end <= start {
		return ""
	}
	return string(runes[start:end])
}
