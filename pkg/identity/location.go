package identity

import (
	"net/url"
	"strings"
)

// NormalizeLocation removes the query/fragment noise an identity-provider
// redirect leaves behind. When the fragment or query of raw carries an iss=
// marker, the bare path is returned; otherwise raw is returned untouched.
// Unparseable input is also returned as-is.
func NormalizeLocation(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if !hasIssuerMarker(u) {
		return raw
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

func hasIssuerMarker(u *url.URL) bool {
	if u.Query().Get("iss") != "" {
		return true
	}
	// The fragment may be a plain parameter list ("iss=...&code=...") or a
	// hash-router location ("/path?iss=...").
	for _, param := range strings.Split(u.Fragment, "&") {
		if strings.HasPrefix(param, "iss=") || strings.Contains(param, "?iss=") {
			return true
		}
	}
	return false
}
