package skills

import "strings"

// MatchGlob reports whether path matches pattern under spec.md §4.G's
// glob semantics: "*" matches any run of non-"/" characters within one
// path segment, "**" matches any run of segments including zero, and a
// pattern containing no "/" is anchored to either the start of path or
// any "/" boundary rather than the root alone.
func MatchGlob(pattern, path string) bool {
	patSegs := strings.Split(pattern, "/")
	pathSegs := strings.Split(path, "/")

	if strings.Contains(pattern, "/") {
		return matchSegments(patSegs, pathSegs)
	}

	for i := 0; i <= len(pathSegs); i++ {
		if matchSegments(patSegs, pathSegs[i:]) {
			return true
		}
	}
	return false
}

// matchSegments matches a "/"-split pattern against a "/"-split path. A
// "**" segment matches zero or more path segments, so "a/**/b" matches
// both "a/b" and "a/x/y/b".
func matchSegments(pat, str []string) bool {
	if len(pat) == 0 {
		return len(str) == 0
	}
	if pat[0] == "**" {
		if matchSegments(pat[1:], str) {
			return true
		}
		return len(str) > 0 && matchSegments(pat, str[1:])
	}
	if len(str) == 0 {
		return false
	}
	return segmentMatch(pat[0], str[0]) && matchSegments(pat[1:], str[1:])
}

// segmentMatch matches one pattern segment against one path segment,
// neither containing "/", where "*" matches any run of characters.
func segmentMatch(pat, s string) bool {
	if pat == "" {
		return s == ""
	}
	if pat[0] == '*' {
		for i := 0; i <= len(s); i++ {
			if segmentMatch(pat[1:], s[i:]) {
				return true
			}
		}
		return false
	}
	if s == "" || s[0] != pat[0] {
		return false
	}
	return segmentMatch(pat[1:], s[1:])
}
