package oauth

import (
	"context"
	"net/http"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Authenticator binds a Provider to a single server URL and gives a
// transport the two operations it needs to carry bearer auth across
// requests: an eagerly-refreshed Authorization header, and a one-shot
// reaction to a 401. Transports that wrap an Authenticator retry the
// original request exactly once after a successful challenge.
type Authenticator struct {
	provider  *Provider
	serverURL string

	// clientID/clientSecret/scopes configure the client_credentials grant
	// HandleUnauthorized falls back to when no refresh token is available.
	// Unset (clientID == "") unless WithClientCredentials was called.
	clientID     string
	clientSecret string
	scopes       []string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewAuthenticator binds provider to serverURL.
func NewAuthenticator(provider *Provider, serverURL string) *Authenticator {
	return &Authenticator{provider: provider, serverURL: serverURL}
}

// WithClientCredentials configures the client_credentials grant as the
// fallback HandleUnauthorized runs on a 401 when no refresh token is
// available, instead of immediately raising mcp.ErrAuthenticationRequired.
func (a *Authenticator) WithClientCredentials(clientID, clientSecret string, scopes []string) *Authenticator {
	a.clientID = clientID
	a.clientSecret = clientSecret
	a.scopes = scopes
	return a
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Header returns the Authorization header value to send with the next
// request, refreshing the stored token first if it is within its
// expires-soon window. Returns the empty string, with no error, if no
// credentials are stored yet - the caller sends the request unauthenticated
// and relies on HandleUnauthorized to react to the resulting 401.
func (a *Authenticator) Header(ctx context.Context) (string, error) {
	cred, err := a.provider.storage.GetToken(ctx, Normalize(a.serverURL))
	if err != nil || cred == nil {
		return "", nil
	}

	if cred.RefreshToken != "" && ExpiresSoon(cred) {
		refreshed, err := a.provider.Refresh(ctx, a.serverURL, cred, false)
		if err == nil {
			cred = refreshed
		} else {
			a.provider.logWarn(ctx, "oauth: eager refresh failed for %s: %v", a.serverURL, err)
		}
	}

	return AuthHeader(cred), nil
}

// HandleUnauthorized reacts to a 401 response: it parses the challenge,
// re-discovers authorization server metadata if it points somewhere new,
// and attempts a refresh if stored credentials have a refresh token. If no
// refresh is possible and the client_credentials grant is configured (see
// WithClientCredentials), it runs that grant instead. It returns nil when
// a fresh Authorization header is available via Header - the caller should
// retry its request exactly once. It returns mcp.ErrAuthenticationRequired
// when neither recovery is possible and the caller must fall back to an
// interactive grant.
func (a *Authenticator) HandleUnauthorized(ctx context.Context, resp *http.Response) error {
	_, _, err := a.provider.HandleChallenge(ctx, a.serverURL, resp)
	if err != nil {
		return mcp.ErrTransport.Withf("auth challenge: %v", err)
	}

	cred, err := a.provider.storage.GetToken(ctx, Normalize(a.serverURL))
	if err == nil && cred != nil && cred.RefreshToken != "" {
		if _, err := a.provider.Refresh(ctx, a.serverURL, cred, true); err != nil {
			return mcp.ErrAuthenticationRequired.Withf("%s: refresh failed: %v", a.serverURL, err)
		}
		return nil
	}

	if a.clientID != "" && a.clientSecret != "" {
		if _, err := a.provider.ClientCredentialsFlow(ctx, a.serverURL, a.clientID, a.clientSecret, a.scopes); err != nil {
			return mcp.ErrAuthenticationRequired.Withf("%s: client_credentials grant failed: %v", a.serverURL, err)
		}
		return nil
	}

	return mcp.ErrAuthenticationRequired.With(a.serverURL)
}
