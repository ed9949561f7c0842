// Package phone owns the canonical form of attendee phone numbers.
//
// Numbers are stored as "+91" followed by ten digits. Every write path runs
// input through Canonical so lookups only ever need one form.
package phone

import (
	"errors"
	"strings"
)

const (
	Prefix      = "+91"
	countryCode = "91"
	localLen    = 10
)

var ErrInvalidPhone = errors.New("phone number must be 10 digits")

// Digits drops every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Valid reports whether s is exactly ten ASCII digits.
func Valid(s string) bool {
	if len(s) != localLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Canonical accepts a local number, one with the country code, or one with
// the full "+91" prefix and returns the prefixed form.
func Canonical(s string) (string, error) {
	s = strings.TrimSpace(s)
	local := s
	switch {
	case strings.HasPrefix(s, Prefix):
		local = s[len(Prefix):]
	case len(s) == localLen+len(countryCode) && strings.HasPrefix(s, countryCode):
		local = s[len(countryCode):]
	}
	if !Valid(local) {
		return "", ErrInvalidPhone
	}
	return Prefix + local, nil
}

// Local returns the ten-digit number without the prefix.
func Local(canonical string) string {
	return strings.TrimPrefix(canonical, Prefix)
}
