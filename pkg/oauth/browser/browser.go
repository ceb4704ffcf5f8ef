// Package browser completes the authorization-code + PKCE grant for
// desktop/CLI apps that have no embedded browser: it binds a loopback
// listener, hands the authorization URL to the caller (to open a system
// browser or print it), accepts exactly one callback request, and hands
// the result back to an oauth.Provider to finish the exchange.
package browser

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"

	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// NotifyFunc receives the authorization URL once it is known, so the
// caller can open a system browser or print the URL for the user.
type NotifyFunc func(authURL string)

// PageFunc renders the HTML body served back to the browser. msg is
// already HTML-escaped when called for the error page.
type PageFunc func(msg string) string

// Config configures a single login attempt.
type Config struct {
	// Addr is the loopback address to bind, e.g. "127.0.0.1:8080". Empty
	// defaults to port 8080; a ":0" port asks the OS for any free port.
	Addr string

	// Path is the callback path the redirect_uri points at. Defaults to
	// "/callback".
	Path string

	ClientID     string
	ClientSecret string
	Scopes       []string

	// Notify is called once the authorization URL is ready. If nil, the
	// authorization URL is not reported to the caller.
	Notify NotifyFunc

	// SuccessPage and ErrorPage override the default HTML bodies. Each may
	// be left nil to use the built-in page.
	SuccessPage PageFunc
	ErrorPage   PageFunc

	// Timeout bounds the whole wait for the callback. Defaults to 5
	// minutes.
	Timeout time.Duration
}

// authResult carries the outcome of the single callback request this
// package ever accepts.
type authResult struct {
	code  string
	state string
	err   error
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const defaultPort = "8080"

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Login drives the authorization-code + PKCE grant end to end against
// provider for serverURL: it binds the loopback listener, starts the
// flow, waits for the one callback request Config.Timeout allows, and
// completes the flow. It always closes the listener before returning.
func Login(ctx context.Context, provider *oauth.Provider, serverURL string, cfg Config) (*schema.OAuthCredentials, error) {
	if cfg.Path == "" {
		cfg.Path = "/callback"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	listener, redirectURI, err := NewCallbackListener(cfg.Addr, cfg.Path)
	if err != nil {
		return nil, mcp.ErrTransport.Withf("browser: %v", err)
	}
	defer listener.Close()

	flow, err := provider.StartAuthorizationFlow(ctx, serverURL, redirectURI, cfg.ClientID, cfg.ClientSecret, cfg.Scopes)
	if err != nil {
		return nil, err
	}
	if flow.RedirectURI != redirectURI {
		// Use the redirect_uri the flow was built with; the token exchange
		// sends that value.
		redirectURI = flow.RedirectURI
	}

	if cfg.Notify != nil {
		cfg.Notify(flow.AuthURL)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	result, err := waitForCallback(timeoutCtx, listener, flow.State, cfg)
	if err != nil {
		if timeoutCtx.Err() != nil {
			return nil, mcp.ErrTimeout.Withf("browser: %v", err)
		}
		return nil, mcp.ErrTransport.Withf("browser: %v", err)
	}

	return provider.CompleteAuthorizationFlow(ctx, serverURL, flow, result.state, result.code)
}

// NewCallbackListener binds a loopback TCP listener for the OAuth redirect
// and returns it along with the redirect_uri it implies. addr defaults to
// "127.0.0.1:8080"; only loopback hosts are accepted.
func NewCallbackListener(addr, path string) (net.Listener, string, error) {
	if addr == "" {
		addr = "127.0.0.1:" + defaultPort
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid callback address %q: %w", addr, err)
	}
	if !isLoopback(host) {
		return nil, "", fmt.Errorf("callback address must be loopback, got %q", host)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("bind %s: %w", addr, err)
	}
	redirectURI := fmt.Sprintf("http://%s%s", listener.Addr().String(), path)
	return listener, redirectURI, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// waitForCallback serves exactly one request on the expected path, then
// shuts the server down. Requests for any other path get a 404 and the
// server keeps waiting.
func waitForCallback(ctx context.Context, listener net.Listener, expectedState string, cfg Config) (*authResult, error) {
	resultCh := make(chan authResult, 1)
	var once sync.Once
	sendResult := func(r authResult) {
		once.Do(func() { resultCh <- r })
	}

	path, err := callbackPath(cfg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if errParam := q.Get("error"); errParam != "" {
			desc := q.Get("error_description")
			sendResult(authResult{err: fmt.Errorf("%s: %s", errParam, desc)})
			writePage(w, http.StatusBadRequest, errorPage(cfg, errParam+": "+desc))
			return
		}

		state := q.Get("state")
		if !oauth.StateEquals(expectedState, state) {
			sendResult(authResult{err: fmt.Errorf("state mismatch")})
			writePage(w, http.StatusBadRequest, errorPage(cfg, "state mismatch"))
			return
		}

		code := q.Get("code")
		if code == "" {
			sendResult(authResult{err: fmt.Errorf("no authorization code received")})
			writePage(w, http.StatusBadRequest, errorPage(cfg, "no authorization code received"))
			return
		}

		sendResult(authResult{code: code, state: state})
		writePage(w, http.StatusOK, successPage(cfg))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = httpresponse.Error(w, httpresponse.ErrNotFound)
	})

	server := &http.Server{Handler: mux}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			sendResult(authResult{err: fmt.Errorf("callback server: %w", err)})
		}
	}()

	var result authResult
	select {
	case <-ctx.Done():
		result = authResult{err: ctx.Err()}
	case result = <-resultCh:
	}

	_ = server.Shutdown(context.Background())
	wg.Wait()

	if result.err != nil {
		return nil, result.err
	}
	return &result, nil
}

func callbackPath(cfg Config) (string, error) {
	if cfg.Path == "" {
		return "/callback", nil
	}
	u, err := url.Parse(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("invalid callback path %q: %w", cfg.Path, err)
	}
	return u.Path, nil
}

func writePage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func successPage(cfg Config) string {
	if cfg.SuccessPage != nil {
		return cfg.SuccessPage("")
	}
	return defaultSuccessPage
}

func errorPage(cfg Config, msg string) string {
	escaped := html.EscapeString(msg)
	if cfg.ErrorPage != nil {
		return cfg.ErrorPage(escaped)
	}
	return fmt.Sprintf(defaultErrorPageFmt, escaped)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

///////////////////////////////////////////////////////////////////////////////
// DEFAULT PAGES

const defaultSuccessPage = `<!DOCTYPE html>
<html><head><title>Authorization complete</title>
<link rel="icon" href="data:,">
</head><body>
<h1>Authorization complete</h1>
<p>You can close this window and return to the application.</p>
</body></html>`

const defaultErrorPageFmt = `<!DOCTYPE html>
<html><head><title>Authorization failed</title>
<link rel="icon" href="data:,">
</head><body>
<h1>Authorization failed</h1>
<p>%s</p>
</body></html>`
