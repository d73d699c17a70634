package core

import (
	"strings"
	"time"
)

// NowFunc is mockable in tests.
var NowFunc = time.Now

// Now returns the current UTC time, truncated to microseconds (postgres precision).
func Now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings cleans every item of `list` (see CleanString), dropping empty ones and duplicates.
func CleanStrings(list []string, lower ...bool) []string {
	if list == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	cleaned := make([]string, 0, len(list))
	for _, s := range list {
		s = CleanString(s, lower...)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		cleaned = append(cleaned, s)
	}
	return cleaned
}

// StringInSlice reports whether `s` is in `list`.
func StringInSlice(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
