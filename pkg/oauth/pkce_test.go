package oauth_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	// Packages
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	assert "github.com/stretchr/testify/assert"
)

func Test_pkce_challenge_matches_verifier(t *testing.T) {
	assert := assert.New(t)

	pkce, err := oauth.NewPKCE()
	assert.NoError(err)
	assert.Equal("S256", pkce.Method)
	assert.GreaterOrEqual(len(pkce.CodeVerifier), 43)

	sum := sha256.Sum256([]byte(pkce.CodeVerifier))
	assert.Equal(base64.RawURLEncoding.EncodeToString(sum[:]), pkce.CodeChallenge)
}

func Test_pkce_verifier_unique(t *testing.T) {
	assert := assert.New(t)

	a, err := oauth.NewPKCE()
	assert.NoError(err)
	b, err := oauth.NewPKCE()
	assert.NoError(err)
	assert.NotEqual(a.CodeVerifier, b.CodeVerifier)
}

func Test_state_unique_and_nonempty(t *testing.T) {
	assert := assert.New(t)

	a, err := oauth.NewState()
	assert.NoError(err)
	b, err := oauth.NewState()
	assert.NoError(err)
	assert.NotEmpty(a)
	assert.NotEqual(a, b)
}

func Test_state_equals(t *testing.T) {
	assert := assert.New(t)

	s, err := oauth.NewState()
	assert.NoError(err)
	assert.True(oauth.StateEquals(s, s))
	assert.False(oauth.StateEquals(s, s+"x"))
	assert.False(oauth.StateEquals(s, ""))
}
