package oauth

import (
	"testing"

	// Packages
	assert "github.com/stretchr/testify/assert"
)

func Test_extractExpectedRedirectURIs(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"https://example.test/cb"},
		extractExpectedRedirectURIs(`invalid_redirect_uri: expected "https://example.test/cb"`))
	assert.Empty(extractExpectedRedirectURIs("invalid_client_metadata: redirect_uris field is invalid"))
	assert.Equal([]string{"http://a.test/", "https://b.test/cb"},
		extractExpectedRedirectURIs("allowed: http://a.test/ or https://b.test/cb"))
}
