// Package hashing computes content-addressed identities for documents.
//
// Two identities exist: the raw hash of the uploaded bytes and the text
// hash of the normalized extracted text. Both are hex-encoded SHA-256.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

// ShortLen is the number of hex characters shown in logs and reports.
const ShortLen = 12

var blankRuns = regexp.MustCompile(`\n{3,}`)

// HashBytes returns the raw hash of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashText returns the text hash of s after normalization.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(NormalizeText(s)))
	return hex.EncodeToString(sum[:])
}

// NormalizeText unifies line endings to \n, trims trailing whitespace on
// every line, collapses runs of blank lines into a single blank line and
// trims the whole text. NormalizeText is idempotent.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	s = strings.Join(lines, "\n")

	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Short returns the first ShortLen characters of hash followed by "...".
func Short(hash string) string {
	if len(hash) <= ShortLen {
		return hash
	}
	return hash[:ShortLen] + "..."
}
