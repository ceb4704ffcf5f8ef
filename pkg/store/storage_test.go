package store_test

import (
	"context"
	"testing"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	assert "github.com/stretchr/testify/assert"
	oauth2 "golang.org/x/oauth2"
)

// storageTests defines shared behavioural tests for any schema.Storage
// implementation.
var storageTests = []struct {
	Name string
	Fn   func(t *testing.T, s schema.Storage)
}{{
	Name: "TokenGetNotFound",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		_, err := s.GetToken(context.Background(), "https://example.com")
		assert.Error(err)
	},
}, {
	Name: "TokenSetAndGet",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		cred := schema.OAuthCredentials{
			Token: &oauth2.Token{
				AccessToken:  "access-123",
				RefreshToken: "refresh-456",
				TokenType:    "Bearer",
				Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
			},
			ClientID: "client-abc",
			Endpoint: "https://example.com",
			TokenURL: "https://example.com/token",
		}

		assert.NoError(s.SetToken(ctx, "https://example.com", cred))

		got, err := s.GetToken(ctx, "https://example.com")
		assert.NoError(err)
		assert.Equal("access-123", got.AccessToken)
		assert.Equal("refresh-456", got.RefreshToken)
		assert.Equal("client-abc", got.ClientID)
		assert.Equal("https://example.com/token", got.TokenURL)
	},
}, {
	Name: "TokenSetOverwrites",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		cred1 := schema.OAuthCredentials{Token: &oauth2.Token{AccessToken: "old"}, ClientID: "c1"}
		cred2 := schema.OAuthCredentials{Token: &oauth2.Token{AccessToken: "new"}, ClientID: "c2"}

		assert.NoError(s.SetToken(ctx, "https://example.com", cred1))
		assert.NoError(s.SetToken(ctx, "https://example.com", cred2))

		got, err := s.GetToken(ctx, "https://example.com")
		assert.NoError(err)
		assert.Equal("new", got.AccessToken)
		assert.Equal("c2", got.ClientID)
	},
}, {
	Name: "ClientInfoSetAndGet",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		info := schema.OAuthClientInfo{ClientID: "abc", ClientSecret: "shh", RedirectURIs: []string{"http://127.0.0.1:8080/callback"}}
		assert.NoError(s.SetClientInfo(ctx, "https://example.com", info))

		got, err := s.GetClientInfo(ctx, "https://example.com")
		assert.NoError(err)
		assert.Equal("abc", got.ClientID)
		assert.Equal([]string{"http://127.0.0.1:8080/callback"}, got.RedirectURIs)
	},
}, {
	Name: "ServerMetadataSetAndGet",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		meta := schema.OAuthMetadata{Issuer: "https://example.com", TokenEndpoint: "https://example.com/token"}
		assert.NoError(s.SetServerMetadata(ctx, "https://example.com", meta))

		got, err := s.GetServerMetadata(ctx, "https://example.com")
		assert.NoError(err)
		assert.Equal("https://example.com", got.Issuer)
	},
}, {
	Name: "PKCESetGetDelete",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		p := schema.PKCE{CodeVerifier: "verifier-value-long-enough", CodeChallenge: "challenge", Method: "S256"}
		assert.NoError(s.SetPKCE(ctx, "https://example.com", p))

		got, err := s.GetPKCE(ctx, "https://example.com")
		assert.NoError(err)
		assert.Equal("verifier-value-long-enough", got.CodeVerifier)

		assert.NoError(s.DeletePKCE(ctx, "https://example.com"))
		_, err = s.GetPKCE(ctx, "https://example.com")
		assert.Error(err)

		assert.Error(s.DeletePKCE(ctx, "https://example.com"))
	},
}, {
	Name: "StateSetGetDelete",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		assert.NoError(s.SetState(ctx, "https://example.com", "random-state-value"))

		got, err := s.GetState(ctx, "https://example.com")
		assert.NoError(err)
		assert.Equal("random-state-value", got)

		assert.NoError(s.DeleteState(ctx, "https://example.com"))
		_, err = s.GetState(ctx, "https://example.com")
		assert.Error(err)
	},
}, {
	Name: "MultipleURLsAreIndependent",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		cred1 := schema.OAuthCredentials{Token: &oauth2.Token{AccessToken: "token-a"}}
		cred2 := schema.OAuthCredentials{Token: &oauth2.Token{AccessToken: "token-b"}}

		assert.NoError(s.SetToken(ctx, "https://a.example.com", cred1))
		assert.NoError(s.SetToken(ctx, "https://b.example.com", cred2))

		got1, err := s.GetToken(ctx, "https://a.example.com")
		assert.NoError(err)
		assert.Equal("token-a", got1.AccessToken)

		got2, err := s.GetToken(ctx, "https://b.example.com")
		assert.NoError(err)
		assert.Equal("token-b", got2.AccessToken)
	},
}, {
	Name: "EntityKindsAreIndependent",
	Fn: func(t *testing.T, s schema.Storage) {
		assert := assert.New(t)
		ctx := context.Background()

		url := "https://shared.example.com"
		assert.NoError(s.SetToken(ctx, url, schema.OAuthCredentials{Token: &oauth2.Token{AccessToken: "tok"}}))
		assert.NoError(s.SetState(ctx, url, "state-value"))
		assert.NoError(s.SetPKCE(ctx, url, schema.PKCE{CodeVerifier: "verifier"}))

		tok, err := s.GetToken(ctx, url)
		assert.NoError(err)
		assert.Equal("tok", tok.AccessToken)

		state, err := s.GetState(ctx, url)
		assert.NoError(err)
		assert.Equal("state-value", state)

		// Deleting the PKCE entry must not affect the token or state entries.
		assert.NoError(s.DeletePKCE(ctx, url))
		_, err = s.GetToken(ctx, url)
		assert.NoError(err)
		_, err = s.GetState(ctx, url)
		assert.NoError(err)
	},
}}

// runStorageTests runs every shared behavioural test against a Storage
// implementation. The factory is called once per subtest so each gets a
// clean, independent store.
func runStorageTests(t *testing.T, factory func() schema.Storage) {
	t.Helper()
	for _, tt := range storageTests {
		t.Run(tt.Name, func(t *testing.T) {
			tt.Fn(t, factory())
		})
	}
}
