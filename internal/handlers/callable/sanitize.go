package callable

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var swearwords = regexp.MustCompile(`(?i)shoot|dang|heck`)

// Sanitize tones down all-caps text and masks swearwords, including ones
// inside longer words.
func Sanitize(text string) string {
	if IsUpper(text) {
		text = Capitalize(text)
	}
	return swearwords.ReplaceAllStringFunc(text, func(w string) string {
		return strings.Repeat("*", utf8.RuneCountInString(w))
	})
}

// IsUpper reports whether text has at least one cased letter and no
// lowercase ones.
func IsUpper(text string) bool {
	cased := false
	for _, r := range text {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			cased = true
		}
	}
	return cased
}

// Capitalize title-cases the first character and lowercases the rest.
func Capitalize(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 {
		return text
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(text[size:])
}
