package identity

import "strings"

// NormalizeUsername canonicalizes a username for uniqueness checks.
// Currently trim + lower-case; stricter rules go behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail canonicalizes an email address for uniqueness checks.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
