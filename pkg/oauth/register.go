package oauth

import (
	"context"
	"fmt"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Register performs dynamic client registration (RFC 7591) against
// metadata.RegistrationEndpoint and persists the resulting client
// credentials for serverURL.
func (p *Provider) Register(ctx context.Context, serverURL string, metadata *schema.OAuthMetadata, clientName string, redirectURIs, scopes, grantTypes, responseTypes []string, authMethod string) (*schema.OAuthClientInfo, error) {
	if !metadata.SupportsRegistration() {
		return nil, fmt.Errorf("oauth: %s does not support dynamic client registration", metadata.Issuer)
	}
	if clientName == "" {
		clientName = p.clientName
	}

	regReq := &schema.OAuthClientRegistration{
		ClientName:              clientName,
		RedirectURIs:            redirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		TokenEndpointAuthMethod: authMethod,
		Scope:                   strings.Join(scopes, " "),
	}

	payload, err := client.NewJSONRequest(regReq)
	if err != nil {
		return nil, fmt.Errorf("oauth: build registration request: %w", err)
	}

	var info schema.OAuthClientInfo
	if err := p.http.DoWithContext(ctx, payload, &info, client.OptReqEndpoint(metadata.RegistrationEndpoint)); err != nil {
		if retried, retryErr := p.retryRegistrationOnRedirectMismatch(ctx, err, metadata, regReq); retryErr == nil && retried != nil {
			info = *retried
		} else {
			return nil, fmt.Errorf("oauth: dynamic client registration failed: %w", err)
		}
	}

	if err := p.storage.SetClientInfo(ctx, Normalize(serverURL), info); err != nil {
		p.logWarn(ctx, "oauth: failed to persist client info for %s: %v", serverURL, err)
	}
	return &info, nil
}

// retryRegistrationOnRedirectMismatch implements a DCR recovery path for
// mismatched redirect_uris: some authorization servers reject registration
// with invalid_redirect_uri and report, in their error description, the
// redirect_uris they expect - when that shape is detected the
// registration is retried once using the server-reported URIs instead of
// ours.
func (p *Provider) retryRegistrationOnRedirectMismatch(ctx context.Context, original error, metadata *schema.OAuthMetadata, regReq *schema.OAuthClientRegistration) (*schema.OAuthClientInfo, error) {
	expected := extractExpectedRedirectURIs(original.Error())
	if len(expected) == 0 {
		return nil, original
	}

	retryReq := *regReq
	retryReq.RedirectURIs = expected

	payload, err := client.NewJSONRequest(&retryReq)
	if err != nil {
		return nil, err
	}
	var info schema.OAuthClientInfo
	if err := p.http.DoWithContext(ctx, payload, &info, client.OptReqEndpoint(metadata.RegistrationEndpoint)); err != nil {
		return nil, err
	}
	return &info, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// extractExpectedRedirectURIs pulls any "expected <uri>" or quoted URI
// hints out of a registration error body. Authorization servers vary
// wildly in how they phrase this, so the match is deliberately loose: any
// http(s) URL-looking token in the message is treated as a candidate.
func extractExpectedRedirectURIs(message string) []string {
	var out []string
	for _, tok := range strings.Fields(message) {
		tok = strings.Trim(tok, `"',.;`)
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			out = append(out, tok)
		}
	}
	return out
}
