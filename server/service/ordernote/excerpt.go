package ordernote

import (
	"strings"
	"unicode"
)

// DefaultExcerptRunes is the preview length used by the order list.
const DefaultExcerptRunes = 100

// maxBoundaryScan is how far Excerpt looks past maxRunes for a word break.
const maxBoundaryScan = 10

// Excerpt shortens content to about maxRunes characters for order list
// previews. It collapses whitespace, cuts at a word break when one is near
// and appends "..." when text was dropped.
func Excerpt(content string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptRunes
	}
	runes := []rune(strings.Join(strings.Fields(content), " "))
	if len(runes) <= maxRunes {
		return string(runes)
	}

	end := maxRunes
	for i := maxRunes; i < len(runes) && i < maxRunes+maxBoundaryScan; i++ {
		if isSeparator(runes[i]) {
			end = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:end]), isSeparator) + "..."
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}
