package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	wellKnownProtectedResource = "oauth-protected-resource"
	wellKnownAuthServer        = "oauth-authorization-server"
	wellKnownOpenIDConfig      = "openid-configuration"
)

///////////////////////////////////////////////////////////////////////////////
// RESOURCE METADATA (RFC 9728)

// DiscoverResourceMetadata fetches Protected Resource Metadata from
// metadataURL (typically learned from a 401's resource_metadata_url
// parameter) and validates that its resource field covers serverURL.
func (p *Provider) DiscoverResourceMetadata(ctx context.Context, metadataURL, serverURL string) (*schema.ResourceMetadata, error) {
	var meta schema.ResourceMetadata
	if err := p.getJSON(ctx, metadataURL, &meta); err != nil {
		return nil, fmt.Errorf("oauth: fetch resource metadata: %w", err)
	}
	if meta.Resource != "" && !ResourcePrefixMatch(meta.Resource, serverURL) {
		return nil, fmt.Errorf("oauth: resource metadata resource %q does not cover %q", meta.Resource, serverURL)
	}
	return &meta, nil
}

///////////////////////////////////////////////////////////////////////////////
// AUTHORIZATION SERVER METADATA (RFC 8414 / OIDC DISCOVERY)

// Discover resolves the OAuth Authorization Server Metadata for serverURL:
// a prior resource-metadata document's authorization_servers list (if
// any), else the protected-resource/authorization-server/openid-
// configuration well-known probes in turn, else hardcoded default
// endpoints derived from the origin.
//
// The result is cached in storage keyed by the normalized serverURL.
func (p *Provider) Discover(ctx context.Context, serverURL string, resourceMetadataURL string) (*schema.OAuthMetadata, error) {
	key := Normalize(serverURL)

	if cached, err := p.storage.GetServerMetadata(ctx, key); err == nil && cached != nil && cached.Issuer != "" {
		return cached, nil
	}

	candidates := []string{serverURL}
	if resourceMetadataURL != "" {
		rm, err := p.DiscoverResourceMetadata(ctx, resourceMetadataURL, serverURL)
		if err == nil && len(rm.AuthorizationServers) > 0 {
			candidates = rm.AuthorizationServers
		}
	}

	meta, err := p.probeMetadata(ctx, serverURL, candidates)
	if err != nil {
		p.logWarn(ctx, "oauth: discovery failed for %s, using default endpoints: %v", serverURL, err)
		meta = defaultMetadata(serverURL)
	}

	if err := p.storage.SetServerMetadata(ctx, key, *meta); err != nil {
		p.logWarn(ctx, "oauth: failed to cache discovery result for %s: %v", serverURL, err)
	}
	return meta, nil
}

// probeMetadata tries, for each authorization-server candidate, every
// well-known shape RFC 8414 and RFC 9728 define, in order, returning the
// first metadata document whose issuer matches under normalization.
func (p *Provider) probeMetadata(ctx context.Context, serverURL string, candidates []string) (*schema.OAuthMetadata, error) {
	var lastWellFormed *schema.OAuthMetadata
	var lastErr error

	for i, candidate := range candidates {
		isLast := i == len(candidates)-1
		urls := candidateWellKnownURLs(candidate)
		for _, u := range urls {
			var meta schema.OAuthMetadata
			if err := p.getJSON(ctx, u, &meta); err != nil {
				lastErr = err
				continue
			}
			if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
				continue
			}
			if IssuerEquals(meta.Issuer, candidate) || IssuerEquals(meta.Issuer, serverURL) {
				return &meta, nil
			}
			// Issuer mismatch: keep the best candidate seen so we can fall
			// back to the legacy-compatibility branch if every other probe
			// and candidate is exhausted.
			lastWellFormed = &meta
		}
		if isLast && lastWellFormed != nil {
			p.logInfo(ctx, "oauth: accepting issuer mismatch for %s as a legacy-compatibility fallback (issuer=%s)", serverURL, lastWellFormed.Issuer)
			return lastWellFormed, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("oauth: no well-known metadata document found for %s", serverURL)
}

// candidateWellKnownURLs builds the well-known probe URLs for one
// authorization-server candidate, in a fixed order: protected-resource
// (path-insertion, root), authorization-server (path-insertion, root),
// openid-configuration (path-insertion, path-appending).
func candidateWellKnownURLs(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	origin := u.Scheme + "://" + u.Host
	path := strings.TrimSuffix(u.Path, "/")

	insert := func(name string) string {
		if path == "" {
			return origin + "/.well-known/" + name
		}
		return origin + "/.well-known/" + name + path
	}
	root := func(name string) string {
		return origin + "/.well-known/" + name
	}
	appendPath := func(name string) string {
		if path == "" {
			return origin + "/.well-known/" + name
		}
		return origin + path + "/.well-known/" + name
	}

	out := []string{insert(wellKnownProtectedResource)}
	if path != "" {
		out = append(out, root(wellKnownProtectedResource))
	}
	out = append(out, insert(wellKnownAuthServer))
	if path != "" {
		out = append(out, root(wellKnownAuthServer))
	}
	out = append(out, insert(wellKnownOpenIDConfig))
	if path != "" {
		out = append(out, appendPath(wellKnownOpenIDConfig))
	}
	return out
}

// defaultMetadata derives /authorize, /token, /register endpoints from the
// server's origin when every discovery probe fails.
func defaultMetadata(serverURL string) *schema.OAuthMetadata {
	u, err := url.Parse(serverURL)
	origin := serverURL
	if err == nil {
		origin = u.Scheme + "://" + u.Host
	}
	return &schema.OAuthMetadata{
		Issuer:                origin,
		AuthorizationEndpoint: origin + "/authorize",
		TokenEndpoint:         origin + "/token",
		RegistrationEndpoint:  origin + "/register",
	}
}

///////////////////////////////////////////////////////////////////////////////
// HTTP HELPERS

// getJSON performs a simple authenticated-free GET and decodes a JSON
// body, skipping 404/401/403/405 as "not found here" the way discovery
// probes are meant to.
func (p *Provider) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := p.http.DoWithContext(ctx, nil, out, client.OptReqEndpoint(rawURL)); err != nil {
		var httpErr httpresponse.Err
		if errors.As(err, &httpErr) {
			switch int(httpErr) {
			case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden, http.StatusMethodNotAllowed:
				return fmt.Errorf("oauth: %s: not found (%d)", rawURL, int(httpErr))
			}
		}
		return err
	}
	return nil
}
