package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	// Packages
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Challenge is the parsed form of a WWW-Authenticate header on a 401
// response, per RFC 9728 §5.1.
type Challenge struct {
	Realm            string
	ResourceMetadata string
	Scope            string
	Error            string
	ErrorDescription string
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ParseChallenge extracts the Bearer challenge parameters from a 401
// response's WWW-Authenticate header. Both the RFC 9728 §5.1 key
// (resource_metadata) and the resource_metadata_url key some servers send
// instead are accepted.
func ParseChallenge(header string) (*Challenge, error) {
	const prefix = "Bearer"
	trimmed := strings.TrimSpace(header)
	if !strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(prefix)) {
		return nil, fmt.Errorf("oauth: unsupported auth scheme in %q", header)
	}
	rest := strings.TrimSpace(trimmed[len(prefix):])

	c := &Challenge{}
	for _, part := range splitChallengeParams(rest) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		switch key {
		case "realm":
			c.Realm = val
		case "resource_metadata", "resource_metadata_url":
			c.ResourceMetadata = val
		case "scope":
			c.Scope = val
		case "error":
			c.Error = val
		case "error_description":
			c.ErrorDescription = val
		}
	}
	return c, nil
}

// HandleChallenge reacts to a 401 response from serverURL: it discovers (or
// re-discovers, if resource_metadata points somewhere new) authorization
// server metadata and returns it along with the parsed challenge, so the
// caller can start whichever grant is appropriate. The caller is
// responsible for retrying the original request at most once after
// obtaining a fresh token - HandleChallenge itself does not retry.
func (p *Provider) HandleChallenge(ctx context.Context, serverURL string, resp *http.Response) (*Challenge, *schema.OAuthMetadata, error) {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return nil, nil, fmt.Errorf("oauth: HandleChallenge requires a 401 response")
	}
	header := resp.Header.Get("WWW-Authenticate")
	if header == "" {
		metadata, err := p.Discover(ctx, serverURL, "")
		return &Challenge{}, metadata, err
	}

	challenge, err := ParseChallenge(header)
	if err != nil {
		return nil, nil, err
	}

	metadata, err := p.Discover(ctx, serverURL, challenge.ResourceMetadata)
	return challenge, metadata, err
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// splitChallengeParams splits a comma-separated auth-param list while
// respecting quoted commas, e.g. scope="read write".
func splitChallengeParams(s string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
