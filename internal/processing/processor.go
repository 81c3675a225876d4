package processing

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// Normalize collapses every whitespace run to a single space and trims the ends,
// so incidental formatting differences between fetches do not count as changes.
func Normalize(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// Digest returns the hex-encoded SHA-256 of already normalized content.
func Digest(normalized string) string {
	s := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(s[:])
}

// Fingerprint normalizes raw page content and digests it.
func Fingerprint(raw string) string {
	return Digest(Normalize(raw))
}
