// Package translit folds UTF-8 text to plain ASCII for name storage.
// Decomposed combining marks are stripped (café -> cafe) and anything
// still outside ASCII is replaced with a space.
package translit

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	chain     transform.Transformer
	chainOnce sync.Once
)

func transformer() transform.Transformer {
	chainOnce.Do(func() {
		chain = transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		)
	})
	return chain
}

// ToASCII converts s to its closest ASCII form. The result contains only
// bytes < 0x80; runes with no ASCII equivalent become single spaces.
func ToASCII(s string) string {
	out, _, err := transform.String(transformer(), s)
	if err != nil {
		out = s
	}

	if isASCII(out) {
		return out
	}

	var b strings.Builder
	b.Grow(len(out))
	for _, r := range out {
		if r < 0x80 {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
