// Package scrub strips embedded credentials from text before it reaches
// logs or persisted columns (spec.md §4.K / Design Notes).
package scrub

import "regexp"

var credentialURL = regexp.MustCompile(`(https?://)[^/\s:@]+:[^/\s@]+@`)

// URL rewrites any "scheme://user:token@" prefix in s to
// "scheme://<REDACTED>@", leaving the rest of the string untouched.
func URL(s string) string {
	return credentialURL.ReplaceAllString(s, "${1}<REDACTED>@")
}

// Error returns err's message with any embedded credential scrubbed, or
// the empty string for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return URL(err.Error())
}
