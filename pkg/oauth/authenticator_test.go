package oauth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	mcp "github.com/mutablelogic/go-mcp"
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	store "github.com/mutablelogic/go-mcp/pkg/store"
	assert "github.com/stretchr/testify/assert"
	oauth2 "golang.org/x/oauth2"
)

func Test_authenticator_header_no_credentials(t *testing.T) {
	assert := assert.New(t)

	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(err)

	auth := oauth.NewAuthenticator(provider, "https://example.test/mcp")
	header, err := auth.Header(context.Background())
	assert.NoError(err)
	assert.Empty(header)
}

func Test_authenticator_header_returns_bearer(t *testing.T) {
	assert := assert.New(t)

	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(err)

	serverURL := "https://example.test/mcp"
	cred := schema.OAuthCredentials{
		Token:    &oauth2.Token{AccessToken: "abc", TokenType: "bearer", Expiry: time.Now().Add(time.Hour)},
		Endpoint: serverURL,
	}
	assert.NoError(storage.SetToken(context.Background(), oauth.Normalize(serverURL), cred))

	auth := oauth.NewAuthenticator(provider, serverURL)
	header, err := auth.Header(context.Background())
	assert.NoError(err)
	assert.Equal("Bearer abc", header)
}

func Test_authenticator_handle_unauthorized_no_refresh_token(t *testing.T) {
	assert := assert.New(t)

	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(err)

	auth := oauth.NewAuthenticator(provider, "https://example.test/mcp")
	resp := &http.Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}
	err = auth.HandleUnauthorized(context.Background(), resp)
	assert.ErrorIs(err, mcp.ErrAuthenticationRequired)
}

func Test_authenticator_handle_unauthorized_falls_back_to_client_credentials(t *testing.T) {
	assert := assert.New(t)

	srv := newAuthServer(t)
	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(err)

	auth := oauth.NewAuthenticator(provider, srv.URL).WithClientCredentials("svc-client", "svc-secret", []string{"mcp"})
	resp := &http.Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}
	assert.NoError(auth.HandleUnauthorized(context.Background(), resp))

	header, err := auth.Header(context.Background())
	assert.NoError(err)
	assert.Equal("Bearer access-from-cc", header)
}

func Test_authenticator_handle_unauthorized_without_client_credentials_requires_interactive_grant(t *testing.T) {
	assert := assert.New(t)

	srv := newAuthServer(t)
	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(err)

	auth := oauth.NewAuthenticator(provider, srv.URL)
	resp := &http.Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}
	err = auth.HandleUnauthorized(context.Background(), resp)
	assert.ErrorIs(err, mcp.ErrAuthenticationRequired)
}
