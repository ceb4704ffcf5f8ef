package oauth

import (
	"strings"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
)

// expirySoonBuffer is how far ahead of actual expiry a token is treated as
// already expiring, so callers refresh before a request can race the
// server's own clock.
const expirySoonBuffer = 5 * time.Minute

// Expired reports whether cred's access token has already passed its
// expiry. A token with no expiry set is treated as never expiring.
func Expired(cred *schema.OAuthCredentials) bool {
	if cred == nil || cred.Token == nil || cred.Expiry.IsZero() {
		return false
	}
	return !time.Now().Before(cred.Expiry)
}

// ExpiresSoon reports whether cred's access token will expire within the
// next five minutes, the point at which the caller should refresh eagerly
// rather than wait for a 401.
func ExpiresSoon(cred *schema.OAuthCredentials) bool {
	if cred == nil || cred.Token == nil || cred.Expiry.IsZero() {
		return false
	}
	return !time.Now().Add(expirySoonBuffer).Before(cred.Expiry)
}

// AuthHeader renders cred as an Authorization header value, normalizing a
// lowercase "bearer" token type to the canonical "Bearer" while leaving
// any other scheme's case untouched.
func AuthHeader(cred *schema.OAuthCredentials) string {
	if cred == nil || cred.Token == nil {
		return ""
	}
	tokenType := cred.TokenType
	if strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + cred.AccessToken
}
