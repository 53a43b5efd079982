// Package credentials lifts the session cookie and CSRF token out of a request
// captured from the browser's developer tools ("Copy as cURL").
package credentials

import (
	"regexp"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

var (
	// -H 'cookie: ...' with either quote style; header names are case-insensitive.
	cookieHeaderRe = regexp.MustCompile(`(?i)-H\s+(?:'cookie:\s*([^']*)'|"cookie:\s*([^"]*)")`)
	// -b '...' or --cookie '...'
	cookieFlagRe = regexp.MustCompile(`(?:^|\s)(?:-b|--cookie)\s+(?:'([^']*)'|"([^"]*)")`)
	csrfHeaderRe = regexp.MustCompile(`(?i)-H\s+(?:'x-csrfcode:\s*([^']*)'|"x-csrfcode:\s*([^"]*)")`)
)

// Extract scans text for the session cookie and CSRF token. It never fails: a credential
// that cannot be found is returned empty with its presence flag cleared.
// When a pattern matches more than once the first occurrence wins.
func Extract(text string) core.CredentialBundle {
	var b core.CredentialBundle

	if v, ok := firstMatch(cookieHeaderRe, text); ok {
		b.Cookie, b.HasCookie = v, true
	} else if v, ok := firstMatch(cookieFlagRe, text); ok {
		b.Cookie, b.HasCookie = v, true
	}

	if v, ok := firstMatch(csrfHeaderRe, text); ok {
		b.CSRFToken, b.HasCSRFToken = v, true
	}

	return b
}

// firstMatch returns the first non-nil capture group of the leftmost match.
func firstMatch(re *regexp.Regexp, text string) (string, bool) {
	idx := re.FindStringSubmatchIndex(text)
	if idx == nil {
		return "", false
	}
	for g := 1; g*2 < len(idx); g++ {
		if idx[g*2] >= 0 {
			return text[idx[g*2]:idx[g*2+1]], true
		}
	}
	return "", false
}
