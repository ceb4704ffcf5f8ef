package schema

import (
	"context"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Storage is the pluggable OAuth persistence interface. All keys
// are server URLs normalized by the caller (see pkg/oauth.Normalize).
// Implementations must treat a missing entry as a not-found error rather
// than a zero value, so callers can distinguish "never stored" from "stored
// empty".
type Storage interface {
	// GetToken retrieves the token previously stored for url.
	GetToken(ctx context.Context, url string) (*OAuthCredentials, error)
	// SetToken stores (or updates) the token for url.
	SetToken(ctx context.Context, url string, cred OAuthCredentials) error

	// GetClientInfo retrieves the cached dynamic-registration result for url.
	GetClientInfo(ctx context.Context, url string) (*OAuthClientInfo, error)
	// SetClientInfo stores (or updates) the client info for url.
	SetClientInfo(ctx context.Context, url string, info OAuthClientInfo) error

	// GetServerMetadata retrieves the cached discovery document for url.
	GetServerMetadata(ctx context.Context, url string) (*OAuthMetadata, error)
	// SetServerMetadata stores (or updates) the discovery document for url.
	SetServerMetadata(ctx context.Context, url string, meta OAuthMetadata) error

	// GetPKCE retrieves the in-flight PKCE challenge for url.
	GetPKCE(ctx context.Context, url string) (*PKCE, error)
	// SetPKCE stores the in-flight PKCE challenge for url.
	SetPKCE(ctx context.Context, url string, p PKCE) error
	// DeletePKCE removes the PKCE challenge for url.
	DeletePKCE(ctx context.Context, url string) error

	// GetState retrieves the in-flight authorization state for url.
	GetState(ctx context.Context, url string) (string, error)
	// SetState stores the in-flight authorization state for url.
	SetState(ctx context.Context, url string, state string) error
	// DeleteState removes the authorization state for url.
	DeleteState(ctx context.Context, url string) error
}

// CredentialStore is kept as a narrower alias for code that only needs
// token persistence (e.g. a client-credentials-only integration); Storage
// is a superset and every Storage implementation also satisfies it.
type CredentialStore interface {
	GetCredential(ctx context.Context, url string) (*OAuthCredentials, error)
	SetCredential(ctx context.Context, url string, cred OAuthCredentials) error
	DeleteCredential(ctx context.Context, url string) error
}
