// Package sanitize cleans operator-entered free text before it is stored.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	entities     = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'")
)

// Notes strips markup and control characters from a free-text note and
// trims it. Newlines and tabs are kept. An all-markup note becomes empty.
func Notes(s string) string {
	s = htmlTagRegex.ReplaceAllString(s, "")
	s = entities.Replace(s)
	// entity decoding can reveal encoded tags
	s = htmlTagRegex.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
