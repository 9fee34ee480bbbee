package remote

import (
	"regexp"
	"strings"
)

// credentialPrefixes are the prefixes GitHub puts on access tokens. A value
// starting with one of them was pasted into the wrong field.
var credentialPrefixes = []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"}

var (
	canonicalID = regexp.MustCompile(`(?i)^(?:[0-9a-f]{20}|[0-9a-f]{32})$`)
	gistURL     = regexp.MustCompile(`(?i)gist\.github\.com/[^/\s]+/([0-9a-f]+)`)
	hexOnly     = regexp.MustCompile(`(?i)^[0-9a-f]+$`)
)

// Sanitize normalizes a user supplied remote identifier (gist URL, path
// fragment or bare id) into an id. It returns "" when nothing usable is
// found.
//
// Rules, first match wins:
//  1. a pasted access token yields "";
//  2. a gist.github.com/<owner>/<id> URL yields <id> when it is canonical;
//  3. a canonical id is returned as is;
//  4. a path yields its last non-empty segment when that is canonical;
//  5. any other all-hex input is returned verbatim, everything else is "".
//
// Sanitize is pure and idempotent.
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || LooksLikeCredential(trimmed) {
		return ""
	}

	if m := gistURL.FindStringSubmatch(trimmed); m != nil && IsCanonical(m[1]) {
		return m[1]
	}

	if IsCanonical(trimmed) {
		return trimmed
	}

	if strings.Contains(trimmed, "/") {
		if last := lastSegment(trimmed); IsCanonical(last) {
			return last
		}
	}

	if hexOnly.MatchString(trimmed) {
		return trimmed
	}
	return ""
}

// IsCanonical reports whether id is exactly 20 or 32 hex characters.
func IsCanonical(id string) bool {
	return canonicalID.MatchString(id)
}

// LooksLikeCredential reports whether raw starts with an access token prefix.
func LooksLikeCredential(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range credentialPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func lastSegment(s string) string {
	// Drop query and fragment so ".../<id>?file=x" still resolves.
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}
