package oauth_test

import (
	"net/http"
	"testing"

	// Packages
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	store "github.com/mutablelogic/go-mcp/pkg/store"
	assert "github.com/stretchr/testify/assert"
)

func Test_parse_challenge_basic(t *testing.T) {
	assert := assert.New(t)

	c, err := oauth.ParseChallenge(`Bearer realm="mcp", resource_metadata="https://example.com/.well-known/oauth-protected-resource"`)
	assert.NoError(err)
	assert.Equal("mcp", c.Realm)
	assert.Equal("https://example.com/.well-known/oauth-protected-resource", c.ResourceMetadata)
}

func Test_parse_challenge_with_scope_and_error(t *testing.T) {
	assert := assert.New(t)

	c, err := oauth.ParseChallenge(`Bearer error="insufficient_scope", error_description="need more", scope="read write"`)
	assert.NoError(err)
	assert.Equal("insufficient_scope", c.Error)
	assert.Equal("need more", c.ErrorDescription)
	assert.Equal("read write", c.Scope)
}

func Test_parse_challenge_rejects_non_bearer(t *testing.T) {
	assert := assert.New(t)

	_, err := oauth.ParseChallenge(`Basic realm="mcp"`)
	assert.Error(err)
}

func Test_handle_challenge_requires_401(t *testing.T) {
	assert := assert.New(t)

	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	p, err := oauth.New(storage)
	assert.NoError(err)

	_, _, err = p.HandleChallenge(nil, "https://example.com", &http.Response{StatusCode: http.StatusOK})
	assert.Error(err)
}
