// Package sse implements the legacy HTTP+SSE transport: a long-lived GET
// event stream delivers an "endpoint" event pointing at a
// per-connection message URL, and every outbound frame is POSTed to that
// URL. Inbound frames (responses and server-initiated requests alike)
// arrive only on the stream.
package sse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
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

// Config describes the event stream to connect to.
type Config struct {
	URL     string
	Headers map[string]string
	Auth    *oauth.Authenticator
	Logger  *logger.Logger

	// EndpointTimeout bounds how long Start waits for the server's
	// "endpoint" event before failing. Defaults to 30s.
	EndpointTimeout time.Duration
}

// Transport speaks the GET-stream/POST-message SSE variant of MCP's HTTP
// transport. The stream outlives the context passed to Start; Close is the
// only way to tear it down.
type Transport struct {
	cfg Config
	http *client.Client

	mu              sync.Mutex
	alive           bool
	messageURL      string
	protocolVersion string
	fn              transport.InboundFunc
	onFatal         func(error)
	cancel          context.CancelFunc
	body            io.ReadCloser

	wg sync.WaitGroup
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs an SSE transport. The connection is not opened until
// Start is called.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sse: empty URL")
	}
	if cfg.EndpointTimeout <= 0 {
		cfg.EndpointTimeout = 30 * time.Second
	}
	c, err := client.New(client.OptUserAgent("go-mcp/" + mcp.LatestVersion()))
	if err != nil {
		return nil, fmt.Errorf("sse: %w", err)
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
		return nil, fmt.Errorf("sse: unsupported config type %T", config)
	}
}

func init() {
	_ = transport.DefaultRegistry.Register("sse", Factory)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// OnFatal registers a callback invoked at most once if the event stream
// ends without Close having been called first.
func (t *Transport) OnFatal(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFatal = fn
}

// SetProtocolVersion records the negotiated protocol version so it can be
// attached to subsequent POSTs as the MCP-Protocol-Version header.
func (t *Transport) SetProtocolVersion(v string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.protocolVersion = v
}

// Start opens the event stream, waits for the server's "endpoint" event,
// and begins dispatching inbound frames to fn.
func (t *Transport) Start(ctx context.Context, fn transport.InboundFunc) error {
	t.mu.Lock()
	if t.alive {
		t.mu.Unlock()
		return fmt.Errorf("sse: already started")
	}
	t.fn = fn
	t.mu.Unlock()

	// The stream follows ctx only until the endpoint event arrives.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	resp, err := t.getStream(streamCtx)
	if err != nil {
		stop()
		cancel()
		return err
	}

	t.mu.Lock()
	t.cancel = cancel
	t.body = resp.Body
	t.alive = true
	t.mu.Unlock()

	endpointCh := make(chan string, 1)
	t.wg.Add(1)
	go t.readLoop(streamCtx, resp.Body, endpointCh)

	select {
	case ep := <-endpointCh:
		base, err := url.Parse(t.cfg.URL)
		if err != nil {
			_ = t.Close(ctx)
			return fmt.Errorf("sse: %w", err)
		}
		ref, err := url.Parse(ep)
		if err != nil {
			_ = t.Close(ctx)
			return fmt.Errorf("sse: invalid endpoint %q: %w", ep, err)
		}
		t.mu.Lock()
		t.messageURL = base.ResolveReference(ref).String()
		t.mu.Unlock()
		stop()
		return nil
	case <-time.After(t.cfg.EndpointTimeout):
		_ = t.Close(ctx)
		return mcp.ErrTimeout.With("sse: timeout waiting for endpoint event")
	case <-ctx.Done():
		_ = t.Close(ctx)
		return ctx.Err()
	}
}

// Send POSTs data to the message URL advertised by the stream. A 401 is
// retried exactly once after a successful auth challenge.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	if !t.alive {
		t.mu.Unlock()
		return mcp.ErrClosed.With("sse: transport closed")
	}
	messageURL := t.messageURL
	t.mu.Unlock()

	if messageURL == "" {
		return fmt.Errorf("sse: no message endpoint yet")
	}

	resp, err := t.post(ctx, messageURL, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized && t.cfg.Auth != nil {
		if herr := t.cfg.Auth.HandleUnauthorized(ctx, resp); herr != nil {
			return herr
		}
		resp2, err := t.post(ctx, messageURL, data)
		if err != nil {
			return err
		}
		defer resp2.Body.Close()
		_, _ = io.Copy(io.Discard, resp2.Body)
		if resp2.StatusCode < 200 || resp2.StatusCode > 299 {
			return mcp.ErrTransport.Withf("sse: POST %s", resp2.Status)
		}
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mcp.ErrTransport.Withf("sse: POST %s", resp.Status)
	}
	return nil
}

// Close ends the event stream and waits for the reader goroutine to exit.
// It is safe to call more than once.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.alive {
		t.mu.Unlock()
		return nil
	}
	t.alive = false
	cancel := t.cancel
	body := t.body
	t.messageURL = ""
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if body != nil {
		_ = body.Close()
	}
	t.wg.Wait()
	return nil
}

// Alive reports whether the event stream is still believed open.
func (t *Transport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *Transport) getStream(ctx context.Context) (*http.Response, error) {
	req, err := t.newRequest(ctx, http.MethodGet, t.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", client.ContentTypeTextStream)

	resp, err := t.http.Client.Do(req)
	if err != nil {
		return nil, mcp.ErrTransport.Withf("sse: %v", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && t.cfg.Auth != nil {
		resp.Body.Close()
		if herr := t.cfg.Auth.HandleUnauthorized(ctx, resp); herr != nil {
			return nil, herr
		}
		req2, err := t.newRequest(ctx, http.MethodGet, t.cfg.URL, nil)
		if err != nil {
			return nil, err
		}
		req2.Header.Set("Accept", client.ContentTypeTextStream)
		resp, err = t.http.Client.Do(req2)
		if err != nil {
			return nil, mcp.ErrTransport.Withf("sse: %v", err)
		}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, mcp.ErrTransport.Withf("sse: GET %s", resp.Status)
	}
	return resp, nil
}

func (t *Transport) post(ctx context.Context, url string, data []byte) (*http.Response, error) {
	req, err := t.newRequest(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.http.Client.Do(req)
	if err != nil {
		return nil, mcp.ErrTransport.Withf("sse: %v", err)
	}
	return resp, nil
}

func (t *Transport) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("sse: %w", err)
	}
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	t.mu.Lock()
	version := t.protocolVersion
	t.mu.Unlock()
	if version != "" {
		req.Header.Set("MCP-Protocol-Version", version)
	}
	if t.cfg.Auth != nil {
		header, err := t.cfg.Auth.Header(ctx)
		if err == nil && header != "" {
			req.Header.Set("Authorization", header)
		}
	}
	return req, nil
}

func (t *Transport) readLoop(ctx context.Context, body io.Reader, endpointCh chan<- string) {
	defer t.wg.Done()

	_ = client.NewTextStream().Decode(body, func(event client.TextStreamEvent) error {
		if ctx.Err() != nil {
			return io.EOF
		}
		switch event.Event {
		case "endpoint":
			select {
			case endpointCh <- event.Data:
			default:
			}
		case "message", "":
			data := make([]byte, len(event.Data))
			copy(data, event.Data)
			t.fn(transport.Frame{Data: data})
		}
		return nil
	})

	t.mu.Lock()
	wasAlive := t.alive
	t.alive = false
	onFatal := t.onFatal
	t.mu.Unlock()

	if wasAlive && onFatal != nil {
		onFatal(mcp.ErrTransport.With("sse: event stream closed unexpectedly"))
	}
}

