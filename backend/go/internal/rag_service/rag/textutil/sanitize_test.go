package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"empty":            {"", ""},
		"collapse spaces":  {"  alpha \t\n beta  ", "alpha beta"},
		"control chars":    {"a\x00b\x07c\x1bd", "abcd"},
		"invalid utf8":     {"ok\xff\xfe done", "ok done"},
		"lone surrogate":   {"x\xed\xa0\x80y", "xy"},
		"keeps unicode":    {"naïve café 数学", "naïve café 数学"},
		"nbsp is space":    {"a  b", "a b"},
		"only whitespace":  {" \r\n\t ", ""},
		"replacement char": {"keep � mark", "keep � mark"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(tc.in))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"  lots   of\n\nwhitespace\t ",
		"mixed\x00control\x01chars\xff and   separators",
		"\xed\xbf\xbf surrogate tail",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 10))
	assert.Equal(t, "héllo", Truncate("héllo", 0))
	assert.Equal(t, "数学", Truncate("数学物理", 2))
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "What is a derivative", FirstSentence("What is a derivative? Explain it.", 60))
	assert.Equal(t, "aaaaa", FirstSentence("aaaaaaaaaa", 5))
	assert.Equal(t, "", FirstSentence("   ", 60))
}
