package oauth

import (
	"context"
	"fmt"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	logger "github.com/mutablelogic/go-server/pkg/logger"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Provider drives the client side of the OAuth 2.1 subsystem for a single
// MCP server: discovery, dynamic client registration, the three grant
// strategies, refresh, and 401-driven auth-challenge handling. One Provider
// is shared by every transport talking to the same server.
type Provider struct {
	http       *client.Client
	storage    schema.Storage
	logger     *logger.Logger
	clientName string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs a Provider backed by storage for credential/metadata
// persistence, using http for every discovery, registration and token
// request it issues.
func New(storage schema.Storage, opts ...client.ClientOpt) (*Provider, error) {
	if storage == nil {
		return nil, fmt.Errorf("oauth: storage is required")
	}
	c, err := client.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("oauth: %w", err)
	}
	return &Provider{http: c, storage: storage, clientName: "go-mcp"}, nil
}

// WithLogger attaches a logger used for discovery fallback/legacy-compat
// diagnostics. Returns p for chaining.
func (p *Provider) WithLogger(l *logger.Logger) *Provider {
	p.logger = l
	return p
}

// WithClientName sets the client_name presented during dynamic client
// registration (RFC 7591). Returns p for chaining.
func (p *Provider) WithClientName(name string) *Provider {
	if name != "" {
		p.clientName = name
	}
	return p
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (p *Provider) logWarn(ctx context.Context, format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(ctx, format, args...)
	}
}

func (p *Provider) logInfo(ctx context.Context, format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(ctx, format, args...)
	}
}
