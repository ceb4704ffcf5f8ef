// Package oauth implements the client-side half of the OAuth 2.1
// subsystem: discovery (RFC 8414/9728), dynamic client registration
// (RFC 7591), the authorization-code+PKCE, client-credentials and device
// grant strategies, token refresh, and 401-driven auth-challenge handling.
package oauth

import (
	"net/url"
	"strings"
)

// Normalize puts a server URL into the canonical form used for every
// storage key and issuer comparison: lowercase scheme and host, the
// default port for the scheme removed, and exactly one trailing slash
// stripped. Normalize is idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()

	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}

	hostport := host
	if port != "" {
		hostport = host + ":" + port
	}

	path := strings.TrimSuffix(u.Path, "/")

	out := scheme + "://" + hostport + path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// IssuerEquals compares two issuer/server URLs after normalization,
// tolerating trailing-slash-only differences.
func IssuerEquals(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// ResourcePrefixMatch reports whether resource (from Protected Resource
// Metadata's "resource" field) is a prefix of, or equal to, serverURL once
// both are normalized - the check RFC 9728 validation requires before
// trusting the authorization_servers list in a resource-metadata document.
func ResourcePrefixMatch(resource, serverURL string) bool {
	r := Normalize(resource)
	s := Normalize(serverURL)
	return r == s || strings.HasPrefix(s, r)
}
