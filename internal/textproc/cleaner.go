package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	cidArtifact = regexp.MustCompile(`\(cid:\d+\)`)
	hyphenWrap  = regexp.MustCompile(`-\r?\n`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Clean normalizes raw extracted text: strips PDF glyph-id artifacts, rejoins
// hyphenated line wraps, transliterates to ASCII (lossy for characters with no
// ASCII representation), and collapses whitespace runs to single spaces.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = cidArtifact.ReplaceAllString(text, "")
	text = hyphenWrap.ReplaceAllString(text, "")

	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	if folded, _, err := transform.String(fold, text); err == nil {
		text = folded
	}

	var ascii strings.Builder
	ascii.Grow(len(text))
	for _, r := range text {
		if r < unicode.MaxASCII {
			ascii.WriteRune(r)
		}
	}

	return strings.TrimSpace(whitespace.ReplaceAllString(ascii.String(), " "))
}
