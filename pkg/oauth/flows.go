package oauth

import (
	"context"
	"fmt"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	oauth2 "golang.org/x/oauth2"
	clientcredentials "golang.org/x/oauth2/clientcredentials"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// AuthorizationFlow carries the state a caller must hold between starting
// an authorization-code flow and completing it once the redirect arrives.
type AuthorizationFlow struct {
	AuthURL     string
	State       string
	Verifier    string
	RedirectURI string
	cfg         *oauth2.Config
}

///////////////////////////////////////////////////////////////////////////////
// AUTHORIZATION CODE + PKCE

// StartAuthorizationFlow builds the authorization URL for the Authorization
// Code + PKCE grant, registering a client dynamically first if clientID is
// empty. The returned flow's State and Verifier must be
// persisted by the caller (or via storage, see pkg/oauth/browser) until
// CompleteAuthorizationFlow is called.
func (p *Provider) StartAuthorizationFlow(ctx context.Context, serverURL, redirectURI, clientID, clientSecret string, scopes []string) (*AuthorizationFlow, error) {
	metadata, err := p.Discover(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}

	if clientID == "" {
		info, err := p.Register(ctx, serverURL, metadata, "", []string{redirectURI}, scopes,
			[]string{"authorization_code", "refresh_token"}, []string{"code"}, "none")
		if err != nil {
			return nil, err
		}
		clientID, clientSecret = info.ClientID, info.ClientSecret
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     metadata.Endpoint(),
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}

	pkce, err := NewPKCE()
	if err != nil {
		return nil, err
	}
	state, err := NewState()
	if err != nil {
		return nil, err
	}
	if err := p.storage.SetPKCE(ctx, Normalize(serverURL), *pkce); err != nil {
		p.logWarn(ctx, "oauth: failed to persist PKCE state for %s: %v", serverURL, err)
	}
	if err := p.storage.SetState(ctx, Normalize(serverURL), state); err != nil {
		p.logWarn(ctx, "oauth: failed to persist CSRF state for %s: %v", serverURL, err)
	}

	var challengeOpts []oauth2.AuthCodeOption
	switch {
	case metadata.SupportsS256():
		challengeOpts = []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(pkce.CodeVerifier)}
	case metadata.SupportsPKCE():
		challengeOpts = []oauth2.AuthCodeOption{
			oauth2.SetAuthURLParam("code_challenge", pkce.CodeVerifier),
			oauth2.SetAuthURLParam("code_challenge_method", "plain"),
		}
	default:
		challengeOpts = []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(pkce.CodeVerifier)}
	}

	return &AuthorizationFlow{
		AuthURL:     cfg.AuthCodeURL(state, challengeOpts...),
		State:       state,
		Verifier:    pkce.CodeVerifier,
		RedirectURI: redirectURI,
		cfg:         cfg,
	}, nil
}

// CompleteAuthorizationFlow validates the returned state in constant time,
// exchanges code for a token, and persists the resulting credentials for
// serverURL.
func (p *Provider) CompleteAuthorizationFlow(ctx context.Context, serverURL string, flow *AuthorizationFlow, receivedState, code string) (*schema.OAuthCredentials, error) {
	if !StateEquals(flow.State, receivedState) {
		return nil, fmt.Errorf("oauth: state mismatch, possible CSRF")
	}

	token, err := flow.cfg.Exchange(p.oauthContext(ctx), code, oauth2.VerifierOption(flow.Verifier))
	if err != nil {
		return nil, fmt.Errorf("oauth: token exchange failed: %w", err)
	}

	_ = p.storage.DeletePKCE(ctx, Normalize(serverURL))
	_ = p.storage.DeleteState(ctx, Normalize(serverURL))

	cred := schema.OAuthCredentials{Token: token, ClientID: flow.cfg.ClientID, Endpoint: serverURL, TokenURL: flow.cfg.Endpoint.TokenURL}
	if err := p.storage.SetToken(ctx, Normalize(serverURL), cred); err != nil {
		p.logWarn(ctx, "oauth: failed to persist token for %s: %v", serverURL, err)
	}
	if flow.cfg.ClientSecret != "" {
		_ = p.storage.SetClientInfo(ctx, Normalize(serverURL), schema.OAuthClientInfo{ClientID: flow.cfg.ClientID, ClientSecret: flow.cfg.ClientSecret})
	}
	return &cred, nil
}

///////////////////////////////////////////////////////////////////////////////
// DEVICE AUTHORIZATION GRANT (RFC 8628, supplemented feature)

// DeviceAuthCallback is invoked once the device/user codes are known, so
// the caller can display the verification URI and code to the end user.
type DeviceAuthCallback func(verificationURI, userCode string)

// DeviceFlow performs the Device Authorization grant end to end: metadata
// discovery, optional dynamic registration, the device code request, the
// callback notification, and the (blocking) polling exchange.
func (p *Provider) DeviceFlow(ctx context.Context, serverURL, clientID string, scopes []string, notify DeviceAuthCallback) (*schema.OAuthCredentials, error) {
	metadata, err := p.Discover(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}
	if !metadata.SupportsDeviceFlow() {
		return nil, fmt.Errorf("oauth: %s does not support the device authorization flow", serverURL)
	}

	if clientID == "" {
		info, err := p.Register(ctx, serverURL, metadata, "", nil, scopes,
			[]string{"urn:ietf:params:oauth:grant-type:device_code", "refresh_token"}, nil, "none")
		if err != nil {
			return nil, err
		}
		clientID = info.ClientID
	}

	cfg := &oauth2.Config{ClientID: clientID, Endpoint: metadata.Endpoint(), Scopes: scopes}

	deviceResp, err := cfg.DeviceAuth(p.oauthContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("oauth: device code request failed: %w", err)
	}
	if notify != nil {
		notify(deviceResp.VerificationURI, deviceResp.UserCode)
	}

	token, err := cfg.DeviceAccessToken(p.oauthContext(ctx), deviceResp)
	if err != nil {
		return nil, fmt.Errorf("oauth: device token exchange failed: %w", err)
	}

	cred := schema.OAuthCredentials{Token: token, ClientID: clientID, Endpoint: serverURL, TokenURL: metadata.TokenEndpoint}
	if err := p.storage.SetToken(ctx, Normalize(serverURL), cred); err != nil {
		p.logWarn(ctx, "oauth: failed to persist token for %s: %v", serverURL, err)
	}
	return &cred, nil
}

///////////////////////////////////////////////////////////////////////////////
// CLIENT CREDENTIALS GRANT

// ClientCredentialsFlow performs the machine-to-machine Client Credentials
// grant. Unlike the other flows, a pre-registered confidential client is
// required; dynamic registration is never attempted for this grant.
func (p *Provider) ClientCredentialsFlow(ctx context.Context, serverURL, clientID, clientSecret string, scopes []string) (*schema.OAuthCredentials, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("oauth: client credentials flow requires a pre-registered client-id and client-secret")
	}
	metadata, err := p.Discover(ctx, serverURL, "")
	if err != nil {
		return nil, err
	}
	if !metadata.SupportsGrantType("client_credentials") {
		return nil, fmt.Errorf("oauth: %s does not support the client_credentials grant", serverURL)
	}

	ccCfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     metadata.TokenEndpoint,
		Scopes:       scopes,
	}
	token, err := ccCfg.Token(p.oauthContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("oauth: client credentials exchange failed: %w", err)
	}

	cred := schema.OAuthCredentials{Token: token, ClientID: clientID, Endpoint: serverURL, TokenURL: metadata.TokenEndpoint}
	if err := p.storage.SetToken(ctx, Normalize(serverURL), cred); err != nil {
		p.logWarn(ctx, "oauth: failed to persist token for %s: %v", serverURL, err)
	}
	if err := p.storage.SetClientInfo(ctx, Normalize(serverURL), schema.OAuthClientInfo{ClientID: clientID, ClientSecret: clientSecret}); err != nil {
		p.logWarn(ctx, "oauth: failed to persist client secret for %s: %v", serverURL, err)
	}
	return &cred, nil
}

///////////////////////////////////////////////////////////////////////////////
// REFRESH

// Refresh exchanges cred's refresh token for a new access token. If force
// is false and the token is not within ExpiresSoon's window, cred is
// returned unchanged. The authorization server's client secret, if any, is
// looked up from storage by ClientID.
func (p *Provider) Refresh(ctx context.Context, serverURL string, cred *schema.OAuthCredentials, force bool) (*schema.OAuthCredentials, error) {
	if cred == nil || cred.Token == nil {
		return nil, fmt.Errorf("oauth: no credentials to refresh")
	}
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("oauth: credentials do not contain a refresh token")
	}
	if cred.TokenURL == "" {
		return nil, fmt.Errorf("oauth: credentials missing token URL")
	}
	if !force && !ExpiresSoon(cred) {
		return cred, nil
	}

	clientSecret := ""
	if info, err := p.storage.GetClientInfo(ctx, Normalize(serverURL)); err == nil && info != nil && info.ClientID == cred.ClientID {
		clientSecret = info.ClientSecret
	}

	cfg := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cred.TokenURL},
	}

	// oauth2's TokenSource only refreshes an already-expired token, so force
	// expiry on a copy to make it refresh unconditionally.
	tok := *cred.Token
	tok.Expiry = time.Now().Add(-time.Minute)
	newToken, err := cfg.TokenSource(p.oauthContext(ctx), &tok).Token()
	if err != nil {
		return nil, fmt.Errorf("oauth: token refresh failed: %w", err)
	}
	if newToken.RefreshToken == "" {
		newToken.RefreshToken = cred.RefreshToken
	}

	refreshed := schema.OAuthCredentials{Token: newToken, ClientID: cred.ClientID, Endpoint: cred.Endpoint, TokenURL: cred.TokenURL}
	if err := p.storage.SetToken(ctx, Normalize(serverURL), refreshed); err != nil {
		p.logWarn(ctx, "oauth: failed to persist refreshed token for %s: %v", serverURL, err)
	}
	return &refreshed, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// oauthContext injects the provider's HTTP client so the oauth2 package
// issues discovery/token/refresh requests through the same transport
// (proxy, TLS config, user agent) as every other MCP request.
func (p *Provider) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http.Client)
}
