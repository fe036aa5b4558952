// Package phone normalizes subscriber numbers to international form before
// they reach the backend API.
package phone

import "strings"

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Normalize converts a raw gateway number to E.164-like form using the
// configured country calling code. Rules, first match wins:
//
//  1. "+" followed by digits passes through unchanged.
//  2. a leading "0" is replaced by the country code.
//  3. bare digits are prefixed with the country code.
//
// Anything else passes through unchanged. The function is total.
func Normalize(raw, countryCode string) string {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "+") && allDigits(s[1:]):
		return s
	case strings.HasPrefix(s, "0") && allDigits(s):
		return countryCode + s[1:]
	case allDigits(s):
		return countryCode + s
	}
	return raw
}
