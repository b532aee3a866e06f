package normalisers

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	horizontalRuns = regexp.MustCompile(`[ \t]{2,}`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// CleanToolOutput tidies text produced by command line converters:
// non-breaking spaces become spaces, runs of spaces and tabs collapse,
// trailing spaces are dropped per line and long blank runs shrink to one
// blank line.
func CleanToolOutput(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\f", "\n\n")
	text = horizontalRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// PrintableRatio returns the share of runes in s that are printable or
// ordinary whitespace. Invalid UTF-8 counts as unprintable.
func PrintableRatio(s string) float64 {
	total, printable := 0, 0
	for _, r := range s {
		total++
		if r == utf8.RuneError {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}
