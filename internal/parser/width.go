package parser

import (
	"unicode"

	"golang.org/x/text/width"
)

// displayWidth is the visual column width of r: 2 for East-Asian wide
// and fullwidth glyphs, 1 for everything else — including control and
// ambiguous-width characters, per spec.md §4.4's "treated as 1 for any
// control or ambiguous-width character".
func displayWidth(r rune) int {
	if unicode.IsControl(r) {
		return 1
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// lineDisplayWidth sums displayWidth over every rune in s.
func lineDisplayWidth(s string) int {
	total := 0
	for _, r := range s {
		total += displayWidth(r)
	}
	return total
}
