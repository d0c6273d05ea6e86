package util

import (
	"strings"
	"testing"
)

func TestSanitizeDeviceInfo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain label", "Chrome on MacOS", "Chrome on MacOS"},
		{"surrounding whitespace", "  Firefox on Linux \t", "Firefox on Linux"},
		{"control characters stripped", "Safari\x00 on\niOS", "Safari oniOS"},
		{"empty input", "", ""},
		{"only whitespace", "   ", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeDeviceInfo(tc.input); got != tc.want {
				t.Errorf("SanitizeDeviceInfo(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeDeviceInfoCapsLength(t *testing.T) {
	long := strings.Repeat("a", 400)
	got := SanitizeDeviceInfo(long)
	if len(got) != maxDeviceInfoLen {
		t.Fatalf("len = %d, want %d", len(got), maxDeviceInfoLen)
	}
}
