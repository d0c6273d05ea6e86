package util

import (
	"strings"
	"unicode"
)

const maxDeviceInfoLen = 255

// SanitizeDeviceInfo normalizes the free-text device label supplied by
// clients at registration time. Control characters are stripped and the
// result is capped at 255 characters to match the column width.
func SanitizeDeviceInfo(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if len(s) > maxDeviceInfoLen {
		s = s[:maxDeviceInfoLen]
	}
	return s
}
