package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	// Packages
	kong "github.com/alecthomas/kong"
	mcp "github.com/mutablelogic/go-mcp"
	oauth "github.com/mutablelogic/go-mcp/pkg/oauth"
	browser "github.com/mutablelogic/go-mcp/pkg/oauth/browser"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	session "github.com/mutablelogic/go-mcp/pkg/session"
	store "github.com/mutablelogic/go-mcp/pkg/store"
	transport "github.com/mutablelogic/go-mcp/pkg/transport"
	sse "github.com/mutablelogic/go-mcp/pkg/transport/sse"
	stdio "github.com/mutablelogic/go-mcp/pkg/transport/stdio"
	streamhttp "github.com/mutablelogic/go-mcp/pkg/transport/streamhttp"
	version "github.com/mutablelogic/go-mcp/pkg/version"

	logger "github.com/mutablelogic/go-server/pkg/logger"
	term "golang.org/x/term"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type CLI struct {
	Globals

	// Commands
	Ping      PingCommand      `cmd:"" help:"Ping the MCP server and print its identity"`
	Login     LoginCommand     `cmd:"" help:"Authorize against an MCP server's OAuth provider"`
	Tools     ToolsCommand     `cmd:"" help:"List available tools"`
	Call      CallCommand      `cmd:"" help:"Call a tool by name"`
	Prompts   PromptsCommand   `cmd:"" help:"List available prompts"`
	Prompt    PromptCommand    `cmd:"" help:"Get a rendered prompt by name"`
	Resources ResourcesCommand `cmd:"" help:"List available resources"`
}

type Globals struct {
	Auth         string           `name:"auth" help:"Static Authorization header in the form scheme=token (e.g. bearer=TOKEN), bypassing OAuth discovery" optional:""`
	Transport    string           `name:"transport" help:"Transport to use against an http(s) URL" enum:"auto,sse,streamhttp" default:"auto"`
	StorageDir   string           `name:"storage-dir" help:"Directory for encrypted OAuth token storage; empty keeps tokens in memory for this run only" optional:""`
	Passphrase   string           `name:"passphrase" help:"Passphrase protecting the OAuth token store" env:"MCP_STORE_PASSPHRASE" optional:""`
	ClientID     string           `name:"client-id" help:"Pre-registered OAuth client id for the client_credentials grant" optional:""`
	ClientSecret string           `name:"client-secret" help:"Pre-registered OAuth client secret for the client_credentials grant" env:"MCP_CLIENT_SECRET" optional:""`
	Scopes       []string         `name:"scope" help:"OAuth scopes to request for the client_credentials grant" optional:""`
	Debug        bool             `name:"debug" help:"Enable debug logging" env:"RUBYLLM_MCP_DEBUG"`
	Version      kong.VersionFlag `name:"version" help:"Print version and exit"`

	// Private
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logger.Logger
	storage  schema.Storage
	provider *oauth.Provider
	sess     *session.Session
}

type PingCommand struct {
	URL string `arg:"" help:"MCP server URL, or a local command for a stdio server"`
}

type LoginCommand struct {
	URL    string   `arg:"" help:"MCP server URL"`
	Addr   string   `name:"addr" help:"Loopback address for the OAuth redirect callback" default:"127.0.0.1:8080"`
	Device bool     `name:"device" help:"Use the device authorization grant instead of a browser redirect"`
	Scopes []string `name:"scope" help:"OAuth scopes to request" optional:""`
}

type ToolsCommand struct {
	URL string `arg:"" help:"MCP server URL, or a local command for a stdio server"`
}

type CallCommand struct {
	URL  string   `arg:"" help:"MCP server URL, or a local command for a stdio server"`
	Name string   `arg:"" help:"Tool name"`
	Args []string `arg:"" help:"Tool arguments as key=value pairs" optional:""`
}

type PromptsCommand struct {
	URL string `arg:"" help:"MCP server URL, or a local command for a stdio server"`
}

type PromptCommand struct {
	URL  string   `arg:"" help:"MCP server URL, or a local command for a stdio server"`
	Name string   `arg:"" help:"Prompt name"`
	Args []string `arg:"" help:"Prompt arguments as key=value pairs" optional:""`
}

type ResourcesCommand struct {
	URL string `arg:"" help:"MCP server URL, or a local command for a stdio server"`
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func main() {
	cli := new(CLI)
	execName, err := os.Executable()
	if err != nil {
		execName = "mcp-client"
	}
	ctx := kong.Parse(cli,
		kong.Name(execName),
		kong.Description("MCP (Model Context Protocol) client"),
		kong.Vars{"version": string(version.JSON(execName))},
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	os.Exit(run(ctx, &cli.Globals))
}

func run(ctx *kong.Context, g *Globals) int {
	if isTerminal(os.Stderr) {
		g.logger = logger.New(os.Stderr, logger.Term, g.Debug)
	} else {
		g.logger = logger.New(os.Stderr, logger.JSON, g.Debug)
	}

	g.ctx, g.cancel = signal.NotifyContext(context.Background(), os.Interrupt)
	defer g.cancel()

	storage, err := g.newStorage()
	if err != nil {
		g.logger.Print(g.ctx, err.Error())
		return 1
	}
	g.storage = storage

	provider, err := oauth.New(g.storage)
	if err != nil {
		g.logger.Print(g.ctx, err.Error())
		return 1
	}
	g.provider = provider.WithLogger(g.logger).WithClientName("mcp-client")

	if err := ctx.Run(g); err != nil {
		g.logger.Print(g.ctx, err.Error())
		return 1
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *LoginCommand) Run(g *Globals) error {
	if cmd.Device {
		return cmd.runDevice(g)
	}
	fmt.Fprintf(os.Stderr, "Visiting %s in your browser to authorize this client...\n", cmd.URL)
	creds, err := browser.Login(g.ctx, g.provider, cmd.URL, browser.Config{
		Addr:   cmd.Addr,
		Scopes: cmd.Scopes,
		Notify: func(authURL string) {
			fmt.Fprintln(os.Stderr, authURL)
		},
	})
	if err != nil {
		return err
	}
	return printJSON(creds)
}

func (cmd *LoginCommand) runDevice(g *Globals) error {
	creds, err := g.provider.DeviceFlow(g.ctx, cmd.URL, "", cmd.Scopes, func(verificationURI, userCode string) {
		fmt.Fprintf(os.Stderr, "Visit %s and enter code %s\n", verificationURI, userCode)
	})
	if err != nil {
		return err
	}
	return printJSON(creds)
}

func (cmd *PingCommand) Run(g *Globals) error {
	if err := g.connect(cmd.URL); err != nil {
		return err
	}
	defer g.sess.Stop(g.ctx)

	if err := g.sess.Ping(g.ctx); err != nil {
		return err
	}
	fmt.Println("OK")

	info := g.sess.ServerInfo()
	caps := g.sess.ServerCapabilities()
	fmt.Printf("Server: %s %s (protocol %s)\n", info.Name, info.Version, g.sess.AgreedVersion())
	fmt.Printf("Capabilities: tools=%v prompts=%v resources=%v logging=%v\n",
		caps.Tools != nil, caps.Prompts != nil, caps.Resources != nil, caps.Logging != nil)
	return nil
}

func (cmd *ToolsCommand) Run(g *Globals) error {
	if err := g.connect(cmd.URL); err != nil {
		return err
	}
	defer g.sess.Stop(g.ctx)

	var result schema.ResponseListTools
	if err := g.request(schema.MethodListTools, schema.RequestList{}, &result); err != nil {
		return err
	}
	for i, t := range result.Tools {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(t.Name)
		if t.Description != "" {
			fmt.Printf("  %s\n", t.Description)
		}
		if t.InputSchema != nil {
			data, err := json.MarshalIndent(t.InputSchema, "  ", "  ")
			if err == nil {
				fmt.Printf("  %s\n", string(data))
			}
		}
	}
	fmt.Printf("\n%d tools\n", len(result.Tools))
	return nil
}

func (cmd *CallCommand) Run(g *Globals) error {
	if err := g.connect(cmd.URL); err != nil {
		return err
	}
	defer g.sess.Stop(g.ctx)

	args, err := parseArgsJSON(cmd.Args)
	if err != nil {
		return err
	}

	var result schema.ResponseToolCall
	req := schema.RequestToolCall{Name: cmd.Name, Arguments: args}
	if err := g.request(schema.MethodCallTool, req, &result); err != nil {
		return err
	}

	if result.IsError {
		fmt.Fprintln(os.Stderr, "Tool returned an error")
	}
	for _, c := range result.Content {
		switch c.Type {
		case "text":
			fmt.Println(c.Text)
		default:
			fmt.Printf("[%s] %s\n", c.Type, c.MimeType)
		}
	}
	return nil
}

func (cmd *PromptsCommand) Run(g *Globals) error {
	if err := g.connect(cmd.URL); err != nil {
		return err
	}
	defer g.sess.Stop(g.ctx)

	var result schema.ResponseListPrompts
	if err := g.request(schema.MethodListPrompts, schema.RequestList{}, &result); err != nil {
		return err
	}
	for _, p := range result.Prompts {
		fmt.Printf("%-30s %s\n", p.Name, p.Description)
		for _, arg := range p.Arguments {
			req := ""
			if arg.Required {
				req = " (required)"
			}
			fmt.Printf("  %-28s %s%s\n", arg.Name, arg.Description, req)
		}
	}
	fmt.Printf("\n%d prompts\n", len(result.Prompts))
	return nil
}

func (cmd *PromptCommand) Run(g *Globals) error {
	if err := g.connect(cmd.URL); err != nil {
		return err
	}
	defer g.sess.Stop(g.ctx)

	args := make(map[string]string, len(cmd.Args))
	for _, kv := range cmd.Args {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("argument must be key=value, got %q", kv)
		}
		args[parts[0]] = parts[1]
	}

	var result schema.ResponseGetPrompt
	req := schema.RequestGetPrompt{Name: cmd.Name, Arguments: args}
	if err := g.request(schema.MethodGetPrompt, req, &result); err != nil {
		return err
	}

	if result.Description != "" {
		fmt.Println(result.Description)
		fmt.Println()
	}
	for i, msg := range result.Messages {
		fmt.Printf("[%d] %s:\n", i, msg.Role)
		if msg.Content != nil && msg.Content.Text != "" {
			fmt.Println(msg.Content.Text)
		}
		fmt.Println()
	}
	return nil
}

func (cmd *ResourcesCommand) Run(g *Globals) error {
	if err := g.connect(cmd.URL); err != nil {
		return err
	}
	defer g.sess.Stop(g.ctx)

	var result schema.ResponseListResources
	if err := g.request(schema.MethodListResources, schema.RequestList{}, &result); err != nil {
		return err
	}
	for _, r := range result.Resources {
		fmt.Printf("%-40s %s\n", r.URI, r.Name)
		if r.Description != "" {
			fmt.Printf("  %s\n", r.Description)
		}
	}
	fmt.Printf("\n%d resources\n", len(result.Resources))
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// newStorage constructs the OAuth token store: file-backed if --storage-dir
// is set, otherwise an in-memory store scoped to this process.
func (g *Globals) newStorage() (schema.Storage, error) {
	if g.StorageDir != "" {
		if g.Passphrase == "" {
			return nil, fmt.Errorf("--passphrase (or MCP_STORE_PASSPHRASE) is required with --storage-dir")
		}
		return store.NewFileStorage(g.Passphrase, g.StorageDir)
	}
	passphrase := g.Passphrase
	if passphrase == "" {
		passphrase = defaultPassphrase()
	}
	return store.NewMemoryStorage(passphrase)
}

// defaultPassphrase derives a passphrase long enough to pass validation
// when the caller hasn't supplied one, for ephemeral in-memory use only.
func defaultPassphrase() string {
	return "mcp-client-ephemeral-passphrase"
}

// connect builds the transport implied by url, wraps it in a Session,
// performs the initialize handshake, and wires notification logging.
func (g *Globals) connect(url string) error {
	tr, err := g.newTransport(url)
	if err != nil {
		return err
	}

	opts := []mcp.Opt{mcp.WithClientInfo("mcp-client", version.Version())}
	if g.Debug {
		opts = append(opts, mcp.WithDebug())
	}
	sess, err := session.New(tr, opts...)
	if err != nil {
		return err
	}
	sess.WithLogger(g.logger)
	sess.OnLogging(func(n schema.NotificationMessage) {
		fmt.Fprintf(os.Stderr, "[%s] %v\n", n.Level, n.Data)
	})
	sess.OnProgress(func(n schema.NotificationProgress) {
		fmt.Fprintf(os.Stderr, "progress: %.0f/%.0f %s\n", n.Progress, n.Total, n.Message)
	})

	if err := sess.Start(g.ctx); err != nil {
		return err
	}
	g.sess = sess
	return nil
}

// newTransport picks stdio for a bare command line and one of the two HTTP
// transports for an http(s) URL, honoring --transport. With "auto" it uses
// streamhttp and falls back to sse only when the streamhttp transport cannot
// be constructed; a 404 or 405 from the server does not trigger the fallback.
func (g *Globals) newTransport(target string) (transport.Transport, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return g.newStdioTransport(target)
	}

	headers, auth, err := g.authConfig(target)
	if err != nil {
		return nil, err
	}

	switch g.Transport {
	case "sse":
		return sse.New(sse.Config{URL: target, Headers: headers, Auth: auth, Logger: g.logger})
	case "streamhttp":
		return streamhttp.New(streamhttp.Config{URL: target, Headers: headers, Auth: auth, Logger: g.logger})
	default:
		tr, err := streamhttp.New(streamhttp.Config{URL: target, Headers: headers, Auth: auth, Logger: g.logger})
		if err != nil {
			return sse.New(sse.Config{URL: target, Headers: headers, Auth: auth, Logger: g.logger})
		}
		return tr, nil
	}
}

// newStdioTransport splits target on whitespace into a command and its
// arguments and spawns it as the MCP server.
func (g *Globals) newStdioTransport(target string) (transport.Transport, error) {
	fields := strings.Fields(target)
	if len(fields) == 0 {
		return nil, mcp.ErrBadParameter.With("empty stdio command")
	}
	return stdio.New(stdio.Config{
		Command: fields[0],
		Args:    fields[1:],
		Logger:  g.logger,
	})
}

// authConfig builds the header map and Authenticator for an http(s) target:
// --auth bypasses OAuth discovery entirely with a fixed header, otherwise
// requests are authenticated through the shared Provider. When --client-id
// and --client-secret are both set, the Authenticator falls back to the
// client_credentials grant on a 401 instead of requiring an interactive
// login.
func (g *Globals) authConfig(target string) (map[string]string, *oauth.Authenticator, error) {
	if g.Auth == "" {
		auth := oauth.NewAuthenticator(g.provider, target)
		if g.ClientID != "" && g.ClientSecret != "" {
			auth = auth.WithClientCredentials(g.ClientID, g.ClientSecret, g.Scopes)
		}
		return nil, auth, nil
	}
	parts := strings.SplitN(g.Auth, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, fmt.Errorf("--auth must be in the form scheme=token (e.g. bearer=TOKEN)")
	}
	scheme := parts[0]
	if strings.EqualFold(scheme, "bearer") {
		scheme = "Bearer"
	}
	return map[string]string{"Authorization": scheme + " " + parts[1]}, nil, nil
}

// request issues method through the current session and decodes its result
// into dest, translating a JSON-RPC error reply into a Go error.
func (g *Globals) request(method string, params any, dest any) error {
	res, err := g.sess.Request(g.ctx, method, params, 30*time.Second)
	if err != nil {
		return err
	}
	if res.Err != nil {
		return mcp.ErrTransport.Withf("%s: %s", method, res.Err.Message)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(res.Result, dest)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

// parseArgsJSON converts key=value pairs into a JSON object, attempting to
// parse each value as JSON (for numbers, booleans, objects) before falling
// back to a plain string.
func parseArgsJSON(args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	m := make(map[string]any, len(args))
	for _, kv := range args {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("argument must be key=value, got %q", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(parts[1]), &v); err != nil {
			v = parts[1]
		}
		m[parts[0]] = v
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
