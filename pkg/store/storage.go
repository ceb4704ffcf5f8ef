package store

import (
	"context"
	"encoding/json"
	"fmt"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	encrypt "github.com/mutablelogic/go-mcp/pkg/encrypt"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Storage implements schema.Storage on top of a blobStore, encrypting every
// entity at rest with AES-256-GCM under an Argon2id-derived key. It is the
// shared implementation behind both NewMemoryStorage and NewFileStorage.
type Storage struct {
	passphrase string
	blobs      blobStore
}

var _ schema.Storage = (*Storage)(nil)
var _ schema.CredentialStore = (*Storage)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newStorage(passphrase string, blobs blobStore) (*Storage, error) {
	if err := encrypt.ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	return &Storage{passphrase: passphrase, blobs: blobs}, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - schema.Storage

func (s *Storage) GetToken(ctx context.Context, url string) (*schema.OAuthCredentials, error) {
	var cred schema.OAuthCredentials
	if err := s.get(ctx, prefixToken, url, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *Storage) SetToken(ctx context.Context, url string, cred schema.OAuthCredentials) error {
	return s.set(ctx, prefixToken, url, cred)
}

func (s *Storage) GetClientInfo(ctx context.Context, url string) (*schema.OAuthClientInfo, error) {
	var info schema.OAuthClientInfo
	if err := s.get(ctx, prefixClient, url, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Storage) SetClientInfo(ctx context.Context, url string, info schema.OAuthClientInfo) error {
	return s.set(ctx, prefixClient, url, info)
}

func (s *Storage) GetServerMetadata(ctx context.Context, url string) (*schema.OAuthMetadata, error) {
	var meta schema.OAuthMetadata
	if err := s.get(ctx, prefixMetadata, url, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Storage) SetServerMetadata(ctx context.Context, url string, meta schema.OAuthMetadata) error {
	return s.set(ctx, prefixMetadata, url, meta)
}

func (s *Storage) GetPKCE(ctx context.Context, url string) (*schema.PKCE, error) {
	var p schema.PKCE
	if err := s.get(ctx, prefixPKCE, url, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) SetPKCE(ctx context.Context, url string, p schema.PKCE) error {
	return s.set(ctx, prefixPKCE, url, p)
}

func (s *Storage) DeletePKCE(ctx context.Context, url string) error {
	return s.blobs.delete(ctx, prefixPKCE+url)
}

func (s *Storage) GetState(ctx context.Context, url string) (string, error) {
	var state string
	if err := s.get(ctx, prefixState, url, &state); err != nil {
		return "", err
	}
	return state, nil
}

func (s *Storage) SetState(ctx context.Context, url string, state string) error {
	return s.set(ctx, prefixState, url, state)
}

func (s *Storage) DeleteState(ctx context.Context, url string) error {
	return s.blobs.delete(ctx, prefixState+url)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - schema.CredentialStore (narrower legacy alias)

func (s *Storage) GetCredential(ctx context.Context, url string) (*schema.OAuthCredentials, error) {
	return s.GetToken(ctx, url)
}

func (s *Storage) SetCredential(ctx context.Context, url string, cred schema.OAuthCredentials) error {
	return s.SetToken(ctx, url, cred)
}

func (s *Storage) DeleteCredential(ctx context.Context, url string) error {
	return s.blobs.delete(ctx, prefixToken+url)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *Storage) get(ctx context.Context, prefix, url string, dest any) error {
	blob, ok, err := s.blobs.get(ctx, prefix+url)
	if err != nil {
		return err
	}
	if !ok {
		return mcp.ErrNotFound.Withf("no entry for %q", url)
	}
	plaintext, err := encrypt.Decrypt[[]byte](s.passphrase, blob)
	if err != nil {
		return fmt.Errorf("decrypt failed for %q: %w", url, err)
	}
	if err := json.Unmarshal(plaintext, dest); err != nil {
		return fmt.Errorf("unmarshal failed for %q: %w", url, err)
	}
	return nil
}

func (s *Storage) set(ctx context.Context, prefix, url string, value any) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	blob, err := encrypt.Encrypt(s.passphrase, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}
	return s.blobs.set(ctx, prefix+url, blob)
}
