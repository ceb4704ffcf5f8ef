package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	store "github.com/mutablelogic/go-mcp/pkg/store"
	assert "github.com/stretchr/testify/assert"
	oauth2 "golang.org/x/oauth2"
)

// newAuthServer wires up the minimal discovery + registration + token
// endpoints an authorization-code, client-credentials or refresh exchange
// needs, all against one httptest.Server.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/.well-known/oauth-protected-resource", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		meta := schema.OAuthMetadata{
			Issuer:                        srv.URL,
			AuthorizationEndpoint:         srv.URL + "/authorize",
			TokenEndpoint:                 srv.URL + "/token",
			RegistrationEndpoint:          srv.URL + "/register",
			CodeChallengeMethodsSupported: []string{"S256"},
			GrantTypesSupported:           []string{"authorization_code", "client_credentials", "refresh_token"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meta)
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schema.OAuthClientInfo{ClientID: "dynamic-client"})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			assert.Equal(t, "the-code", r.Form.Get("code"))
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-from-code",
				"token_type":    "Bearer",
				"refresh_token": "refresh-1",
				"expires_in":    3600,
			})
		case "client_credentials":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access-from-cc",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "refresh_token":
			assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-refreshed",
				"token_type":    "Bearer",
				"refresh_token": "refresh-2",
				"expires_in":    3600,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T) *oauth.Provider {
	t.Helper()
	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(t, err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(t, err)
	return provider.WithClientName("mcp-client")
}

func Test_AuthorizationCodeFlow_end_to_end(t *testing.T) {
	assert := assert.New(t)
	srv := newAuthServer(t)
	provider := newTestProvider(t)

	flow, err := provider.StartAuthorizationFlow(context.Background(), srv.URL, "http://127.0.0.1:0/callback", "", "", []string{"mcp"})
	assert.NoError(err)
	assert.NotEmpty(flow.AuthURL)
	assert.NotEmpty(flow.State)

	cred, err := provider.CompleteAuthorizationFlow(context.Background(), srv.URL, flow, flow.State, "the-code")
	assert.NoError(err)
	assert.Equal("access-from-code", cred.AccessToken)
	assert.Equal("refresh-1", cred.RefreshToken)
	assert.Equal("dynamic-client", cred.ClientID)
}

func Test_AuthorizationCodeFlow_rejects_state_mismatch(t *testing.T) {
	assert := assert.New(t)
	srv := newAuthServer(t)
	provider := newTestProvider(t)

	flow, err := provider.StartAuthorizationFlow(context.Background(), srv.URL, "http://127.0.0.1:0/callback", "", "", nil)
	assert.NoError(err)

	_, err = provider.CompleteAuthorizationFlow(context.Background(), srv.URL, flow, "not-the-state", "the-code")
	assert.Error(err)
}

func Test_ClientCredentialsFlow_success(t *testing.T) {
	assert := assert.New(t)
	srv := newAuthServer(t)
	provider := newTestProvider(t)

	cred, err := provider.ClientCredentialsFlow(context.Background(), srv.URL, "svc-client", "svc-secret", []string{"mcp"})
	assert.NoError(err)
	assert.Equal("access-from-cc", cred.AccessToken)
	assert.Equal("svc-client", cred.ClientID)
}

func Test_ClientCredentialsFlow_requires_credentials(t *testing.T) {
	assert := assert.New(t)
	provider := newTestProvider(t)

	_, err := provider.ClientCredentialsFlow(context.Background(), "https://example.test", "", "", nil)
	assert.Error(err)
}

func Test_Refresh_exchanges_refresh_token(t *testing.T) {
	assert := assert.New(t)
	srv := newAuthServer(t)
	provider := newTestProvider(t)

	cred := &schema.OAuthCredentials{
		Token: &oauth2.Token{
			AccessToken:  "access-old",
			RefreshToken: "refresh-1",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-time.Hour),
		},
		ClientID: "dynamic-client",
		Endpoint: srv.URL,
		TokenURL: srv.URL + "/token",
	}

	refreshed, err := provider.Refresh(context.Background(), srv.URL, cred, true)
	assert.NoError(err)
	assert.Equal("access-refreshed", refreshed.AccessToken)
	assert.Equal("refresh-2", refreshed.RefreshToken)
}
