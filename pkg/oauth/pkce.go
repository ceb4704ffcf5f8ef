package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	// Packages
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	// verifierBytes is the amount of randomness behind the code verifier;
	// base64url-encoded this yields 43 characters, RFC 7636's minimum length.
	verifierBytes = 32
	// stateBytes is the amount of randomness behind the CSRF state value.
	stateBytes = 32
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// NewPKCE generates a fresh PKCE challenge: a URL-safe random code
// verifier of at least 32 bytes, and its S256 code_challenge.
func NewPKCE() (*schema.PKCE, error) {
	verifier, err := randomURLSafe(verifierBytes)
	if err != nil {
		return nil, fmt.Errorf("oauth: generate code_verifier: %w", err)
	}
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return &schema.PKCE{
		CodeVerifier:  verifier,
		CodeChallenge: challenge,
		Method:        "S256",
	}, nil
}

// NewState generates a fresh CSRF state value of at least 32 random bytes.
func NewState() (string, error) {
	return randomURLSafe(stateBytes)
}

// StateEquals compares the expected and received state value in constant
// time, so a timing side-channel can't be used to guess it byte-by-byte.
func StateEquals(expected, received string) bool {
	if len(expected) != len(received) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func randomURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
