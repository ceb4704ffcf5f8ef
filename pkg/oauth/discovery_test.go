package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	// Packages
	client "github.com/mutablelogic/go-client"
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	store "github.com/mutablelogic/go-mcp/pkg/store"
	assert "github.com/stretchr/testify/assert"
)

func Test_Discover_finds_authorization_server_metadata(t *testing.T) {
	assert := assert.New(t)

	var probes atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-protected-resource", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		meta := schema.OAuthMetadata{
			Issuer:                        srv.URL,
			AuthorizationEndpoint:         srv.URL + "/authorize",
			TokenEndpoint:                 srv.URL + "/token",
			RegistrationEndpoint:          srv.URL + "/register",
			CodeChallengeMethodsSupported: []string{"S256"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(meta)
	})

	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(err)

	meta, err := provider.Discover(context.Background(), srv.URL, "")
	assert.NoError(err)
	assert.Equal(srv.URL, meta.Issuer)
	assert.Equal(srv.URL+"/token", meta.TokenEndpoint)
	assert.EqualValues(1, probes.Load())

	// Second call is served from storage's cache, not a fresh probe.
	cached, err := provider.Discover(context.Background(), srv.URL, "")
	assert.NoError(err)
	assert.Equal(meta.Issuer, cached.Issuer)
	assert.EqualValues(1, probes.Load())
}

func Test_Discover_falls_back_to_default_endpoints(t *testing.T) {
	assert := assert.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	storage, err := store.NewMemoryStorage("test-passphrase")
	assert.NoError(err)
	provider, err := oauth.New(storage, client.WithClient(http.DefaultClient))
	assert.NoError(err)

	meta, err := provider.Discover(context.Background(), srv.URL, "")
	assert.NoError(err)
	assert.Equal(srv.URL+"/authorize", meta.AuthorizationEndpoint)
	assert.Equal(srv.URL+"/token", meta.TokenEndpoint)
	assert.Equal(srv.URL+"/register", meta.RegistrationEndpoint)
}
