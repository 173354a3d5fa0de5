// Package normalize prepares raw text lines before encoding.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalizer cleans up one line of text: it trims it, collapses runs of ASCII whitespace into a single
// space and lowercases it.
//
// The zero value lowercases ASCII letters only, leaving other runes untouched.
type Normalizer struct {
	// NFKC applies Unicode compatibility composition first.
	NFKC bool

	// UnicodeLower lowercases all letters, not only ASCII ones.
	UnicodeLower bool
}

// Normalize returns the normalized text.
func (n Normalizer) Normalize(text string) string {
	if n.NFKC {
		text = norm.NFKC.String(text)
	}
	text = collapseASCIISpace(text)
	if n.UnicodeLower {
		return cases.Lower(language.Und).String(text)
	}
	return asciiLower(text)
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func collapseASCIISpace(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	pendingSpace := false
	for ii := 0; ii < len(text); ii++ {
		b := text[ii]
		if isASCIISpace(b) {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

func asciiLower(text string) string {
	buf := []byte(text)
	for ii, b := range buf {
		if 'A' <= b && b <= 'Z' {
			buf[ii] = b + ('a' - 'A')
		}
	}
	return string(buf)
}
