// Package textutil normalises extracted document text before it is chunked,
// embedded or sent to a language model.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sanitize drops invalid UTF-8, surrogate code points and non-whitespace
// control characters, then collapses every whitespace run to a single space
// and trims the ends. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if unicode.Is(unicode.Cs, r) {
			continue
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate returns at most maxRunes runes of text. It never splits a
// multi-byte character. A non-positive maxRunes leaves text untouched.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == maxRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// FirstSentence returns the leading sentence of text, cut to maxRunes.
func FirstSentence(text string, maxRunes int) string {
	text = Sanitize(text)
	if idx := strings.IndexAny(text, ".!?"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(Truncate(text, maxRunes))
}
