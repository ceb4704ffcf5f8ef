// Package streamhttp implements the Streamable HTTP transport: a single
// endpoint accepts POSTed JSON-RPC messages and replies either
// with a single JSON body or a short-lived SSE stream of one or more
// messages, while an optional background GET to the same endpoint carries
// server-initiated pushes for the lifetime of the session.
package streamhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	transport "github.com/mutablelogic/go-mcp/pkg/transport"

	client "github.com/mutablelogic/go-client"
	logger "github.com/mutablelogic/go-server/pkg/logger"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// mcpAccept is the Accept header value required by the Streamable HTTP
// transport: the server may answer with either representation.
const mcpAccept = "application/json, text/event-stream"

// Config describes the single endpoint this transport POSTs to and
// optionally listens on.
type Config struct {
	URL     string
	Headers map[string]string
	Auth    *oauth.Authenticator
	Logger  *logger.Logger

	// DisableListener skips the background GET stream used for
	// server-initiated pushes outside a request/response exchange.
	DisableListener bool
}

// Transport speaks the single-endpoint Streamable HTTP variant of MCP's
// HTTP transport, tracking the server-assigned Mcp-Session-Id across
// requests and the negotiated protocol version for outbound headers.
type Transport struct {
	cfg  Config
	http *client.Client

	mu              sync.Mutex
	alive           bool
	sessionID       string
	protocolVersion string
	listening       bool
	listenerDone    bool
	fn              transport.InboundFunc
	onFatal         func(error)
	cancel          context.CancelFunc

	wg sync.WaitGroup
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs a streamable-HTTP transport. No request is sent until the
// session issues its first Send.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("streamhttp: empty URL")
	}
	c, err := client.New(client.OptUserAgent("go-mcp/" + mcp.LatestVersion()))
	if err != nil {
		return nil, fmt.Errorf("streamhttp: %w", err)
	}
	return &Transport{cfg: cfg, http: c}, nil
}

// Factory adapts New to the transport.Factory signature. config must be a
// Config value (or pointer).
func Factory(config any) (transport.Transport, error) {
	switch c := config.(type) {
	case Config:
		return New(c)
	case *Config:
		return New(*c)
	default:
		return nil, fmt.Errorf("streamhttp: unsupported config type %T", config)
	}
}

func init() {
	_ = transport.DefaultRegistry.Register("streamhttp", Factory)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// OnFatal records fn to satisfy transport.FatalNotifier. This transport
// never invokes it: the background listener reconnects with backoff after
// a dropped stream and stops silently on a 405, and the request/response
// path keeps working without the listener.
func (t *Transport) OnFatal(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFatal = fn
}

// SetProtocolVersion records the negotiated protocol version, sent back as
// MCP-Protocol-Version on every request after initialize.
func (t *Transport) SetProtocolVersion(v string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.protocolVersion = v
}

// Start marks the transport ready to accept Send calls. The endpoint
// itself is not contacted until the first message is sent.
func (t *Transport) Start(ctx context.Context, fn transport.InboundFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.alive {
		return fmt.Errorf("streamhttp: already started")
	}
	t.fn = fn
	t.alive = true
	return nil
}

// Send POSTs data to the configured endpoint. A JSON body is dispatched as
// a single frame; an SSE body is decoded event by event until the server
// closes it. A 401 is retried exactly once after a successful auth
// challenge. The first response carrying an Mcp-Session-Id header starts
// the background listener.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	if !t.alive {
		t.mu.Unlock()
		return mcp.ErrClosed.With("streamhttp: transport closed")
	}
	t.mu.Unlock()

	resp, err := t.doPOST(ctx, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && t.cfg.Auth != nil {
		if herr := t.cfg.Auth.HandleUnauthorized(ctx, resp); herr != nil {
			return herr
		}
		resp2, err := t.doPOST(ctx, data)
		if err != nil {
			return err
		}
		defer resp2.Body.Close()
		return t.handleResponse(resp2)
	}

	return t.handleResponse(resp)
}

// Close stops the background listener, if running, and waits for it to
// exit. It is safe to call more than once.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.alive {
		t.mu.Unlock()
		return nil
	}
	t.alive = false
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	return nil
}

// Alive reports whether the transport still believes it can send.
func (t *Transport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *Transport) doPOST(ctx context.Context, data []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("streamhttp: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", mcpAccept)
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	t.mu.Lock()
	sessionID := t.sessionID
	version := t.protocolVersion
	t.mu.Unlock()
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	if version != "" {
		req.Header.Set("MCP-Protocol-Version", version)
	}
	if t.cfg.Auth != nil {
		header, err := t.cfg.Auth.Header(ctx)
		if err == nil && header != "" {
			req.Header.Set("Authorization", header)
		}
	}

	resp, err := t.http.Client.Do(req)
	if err != nil {
		return nil, mcp.ErrTransport.Withf("streamhttp: %v", err)
	}
	return resp, nil
}

// handleResponse dispatches the body of a completed POST to the inbound
// callback, capturing the session ID header and starting the listener on
// first sight of one.
func (t *Transport) handleResponse(resp *http.Response) error {
	if id := resp.Header.Get("Mcp-Session-Id"); id != "" {
		t.mu.Lock()
		isNew := t.sessionID == ""
		t.sessionID = id
		t.mu.Unlock()
		if isNew {
			t.maybeStartListener()
		}
	}

	if resp.StatusCode == http.StatusAccepted {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return mcp.ErrTransport.Withf("streamhttp: POST %s: %s", resp.Status, string(body))
	}

	ct := resp.Header.Get("Content-Type")
	mimetype, _, _ := mime.ParseMediaType(ct)

	switch mimetype {
	case client.ContentTypeTextStream:
		return client.NewTextStream().Decode(resp.Body, func(event client.TextStreamEvent) error {
			if event.Event != "message" && event.Event != "" {
				return nil
			}
			data := make([]byte, len(event.Data))
			copy(data, event.Data)
			t.fn(transport.Frame{Data: data})
			return nil
		})
	default:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.ErrTransport.Withf("streamhttp: read body: %v", err)
		}
		if len(body) == 0 {
			return nil
		}
		t.fn(transport.Frame{Data: body})
		return nil
	}
}

// maybeStartListener launches the background GET stream used for
// server-initiated pushes outside a request/response exchange. It is a
// no-op if already running, disabled by Config, or the server has already
// told us it does not support it (405).
func (t *Transport) maybeStartListener() {
	if t.cfg.DisableListener {
		return
	}

	t.mu.Lock()
	if t.listening || t.listenerDone {
		t.mu.Unlock()
		return
	}
	t.listening = true
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.listen(ctx)
}

func (t *Transport) listen(ctx context.Context) {
	defer t.wg.Done()

	const (
		minBackoff = 1 * time.Second
		maxBackoff = 30 * time.Second
	)
	backoff := minBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.URL, nil)
		if err != nil {
			return
		}
		req.Header.Set("Accept", client.ContentTypeTextStream)
		t.mu.Lock()
		if t.sessionID != "" {
			req.Header.Set("Mcp-Session-Id", t.sessionID)
		}
		if t.protocolVersion != "" {
			req.Header.Set("MCP-Protocol-Version", t.protocolVersion)
		}
		t.mu.Unlock()
		if t.cfg.Auth != nil {
			if header, err := t.cfg.Auth.Header(ctx); err == nil && header != "" {
				req.Header.Set("Authorization", header)
			}
		}

		resp, err := t.http.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
		} else {
			if resp.StatusCode == http.StatusMethodNotAllowed {
				resp.Body.Close()
				t.mu.Lock()
				t.listening = false
				t.listenerDone = true
				t.mu.Unlock()
				return
			}
			if resp.StatusCode == http.StatusOK {
				_ = client.NewTextStream().Decode(resp.Body, func(event client.TextStreamEvent) error {
					if ctx.Err() != nil {
						return io.EOF
					}
					if event.Event != "message" && event.Event != "" {
						return nil
					}
					data := make([]byte, len(event.Data))
					copy(data, event.Data)
					t.fn(transport.Frame{Data: data})
					return nil
				})
				backoff = minBackoff
			}
			resp.Body.Close()
		}

		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
