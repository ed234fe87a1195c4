package utils

import (
	"regexp"
	"strings"
)

// emailPattern is intentionally loose: something@something.something with no spaces.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s, after trimming, looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail trims and lower-cases an address for use as a lookup key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EmailDomain returns the lower-cased part after the last '@', or "".
func EmailDomain(s string) string {
	s = NormalizeEmail(s)
	i := strings.LastIndexByte(s, '@')
	if i < 0 {
		return ""
	}
	return s[i+1:]
}
