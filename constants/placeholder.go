package constants

import "strings"

// UnverifiedNamePrefix marks a record whose name was synthesized from its
// source rather than extracted.
const UnverifiedNamePrefix = "[Unverified]"

// unknownNames are extraction results that carry no real name.
var unknownNames = []string{"unknown food truck", "unknown", "n/a", "food truck"}

// IsPlaceholderName reports whether name is empty, synthesized or a known
// stand-in for a missing name.
func IsPlaceholderName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || strings.HasPrefix(n, strings.ToLower(UnverifiedNamePrefix)) {
		return true
	}
	for _, u := range unknownNames {
		if n == u {
			return true
		}
	}
	return false
}
