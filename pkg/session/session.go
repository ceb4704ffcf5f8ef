// Package session implements the coordinator: the per-connection state
// machine that drives a Transport through the initialize handshake,
// correlates outbound requests with inbound responses, dispatches
// server-initiated requests to registered handlers, and fans out
// notifications to observers.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	handler "github.com/mutablelogic/go-mcp/pkg/handler"
	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
	transport "github.com/mutablelogic/go-mcp/pkg/transport"
	uuid "github.com/google/uuid"
	logger "github.com/mutablelogic/go-server/pkg/logger"
	otel "go.opentelemetry.io/otel"
	trace "go.opentelemetry.io/otel/trace"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// State is the coordinator's lifecycle state.
type State int

const (
	Uninitialized State = iota
	Connecting
	Initialized
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Initialized:
		return "initialized"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// progressFunc, loggingFunc and rootsFunc are the observer/handler shapes
// an embedder registers with a Session.
type progressFunc func(schema.NotificationProgress)
type loggingFunc func(schema.NotificationMessage)
type listChangedFunc func(method string)
type rootsFunc func(ctx context.Context) ([]*schema.Root, error)

// Session is the coordinator for one Transport. It owns the pending
// request table, the negotiated capability set, and the registered
// server-initiated-request handlers for a single MCP connection.
type Session struct {
	mu    sync.Mutex
	state State
	alive bool

	owner string // uuid tag, scopes this session's entries in the process-wide handler registries

	tr      transport.Transport
	pending *transport.PendingTable
	nextID  atomic.Int64

	opts   *mcp.Opts
	logger *logger.Logger
	tracer trace.Tracer

	agreedVersion string
	serverInfo    schema.ServerInfo
	serverCaps    schema.ServerCapabilities
	clientInfo    schema.ClientInfo

	samplingRuntime    *handler.Runtime
	elicitationRuntime *handler.Runtime
	hitlRuntime        *handler.Runtime
	rootsFn            rootsFunc
	rootsListChanged    bool

	customHandlers map[string]*handler.Runtime

	progressObservers []progressFunc
	loggingObservers  []loggingFunc
	listChangedFns    []listChangedFunc

	// samplingPending tracks deferred sampling replies. Only
	// ElicitationRegistry and HumanInTheLoopRegistry are process-wide
	// registries; a deferred sampling reply has no cross-process completion
	// API, so it is tracked locally instead of inventing a third global
	// registry.
	samplingPending map[string]*handler.AsyncResponse
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs a Session bound to tr. The session is Uninitialized until
// Start is called.
func New(tr transport.Transport, opts ...mcp.Opt) (*Session, error) {
	if tr == nil {
		return nil, mcp.ErrBadParameter.With("transport is required")
	}
	o, err := mcp.ApplyOpts(opts...)
	if err != nil {
		return nil, err
	}
	name, version := o.ClientInfo()
	s := &Session{
		state:          Uninitialized,
		owner:          uuid.NewString(),
		tr:             tr,
		pending:        transport.NewPendingTable(),
		opts:           o,
		tracer:         otel.Tracer("github.com/mutablelogic/go-mcp/pkg/session"),
		clientInfo:     schema.ClientInfo{Name: name, Version: version},
		customHandlers: make(map[string]*handler.Runtime),
		samplingPending: make(map[string]*handler.AsyncResponse),
	}
	return s, nil
}

// WithLogger attaches a logger used for connect/disconnect, reconnect and
// wire-traffic diagnostics. Returns s for chaining.
func (s *Session) WithLogger(l *logger.Logger) *Session {
	s.logger = l
	return s
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - LIFECYCLE

// Start transitions Uninitialized -> Connecting, starts the transport,
// performs the initialize handshake and version negotiation, and
// transitions Connecting -> Initialized on success.
func (s *Session) Start(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.start")
	defer span.End()

	if !s.transition(Uninitialized, Connecting) {
		return mcp.ErrInvalidState.With("session already started")
	}

	if err := s.tr.Start(ctx, s.onFrame); err != nil {
		s.setState(Uninitialized)
		return mcp.ErrTransport.Withf("start: %v", err)
	}
	if fn, ok := s.tr.(transport.FatalNotifier); ok {
		fn.OnFatal(s.onFatalTransport)
	}

	protocolVersion := s.opts.ProtocolVersion()
	if protocolVersion == "" {
		protocolVersion = mcp.DefaultNegotiatedVersion()
	}

	req := schema.RequestInitialize{
		ProtocolVersion: protocolVersion,
		Capabilities:    s.clientCapabilities(),
		ClientInfo:      s.clientInfo,
	}

	res, err := s.doRequest(ctx, schema.MethodInitialize, req, s.opts.Timeout())
	if err != nil {
		_ = s.tr.Close(ctx)
		s.setState(Uninitialized)
		return err
	}
	if res.Err != nil {
		_ = s.tr.Close(ctx)
		s.setState(Uninitialized)
		return mcp.ErrTransport.Withf("initialize: %s", res.Err.Message)
	}

	var result schema.ResponseInitialize
	if err := json.Unmarshal(res.Result, &result); err != nil {
		_ = s.tr.Close(ctx)
		s.setState(Uninitialized)
		return mcp.ErrInvalidRequest.Withf("initialize: malformed result: %v", err)
	}
	if !mcp.SupportedVersion(result.ProtocolVersion) {
		_ = s.tr.Close(ctx)
		s.setState(Uninitialized)
		return mcp.ErrUnsupportedProtocolVersion.With(result.ProtocolVersion)
	}

	s.mu.Lock()
	s.agreedVersion = result.ProtocolVersion
	s.serverInfo = result.ServerInfo
	s.serverCaps = result.Capabilities
	s.alive = true
	s.mu.Unlock()

	if vs, ok := s.tr.(transport.VersionSetter); ok {
		vs.SetProtocolVersion(result.ProtocolVersion)
	}
	s.setState(Initialized)

	if err := s.Notify(ctx, schema.MethodInitialized, struct{}{}); err != nil {
		s.logWarn(ctx, "session: failed to send initialized notification: %v", err)
	}
	s.logInfo(ctx, "session: initialized, agreed version %s, server %s/%s",
		result.ProtocolVersion, result.ServerInfo.Name, result.ServerInfo.Version)
	return nil
}

// Stop transitions the session to Closing then Closed, closes the
// transport, fails every pending request with ErrClosed, and releases this
// session's entries from the process-wide handler registries.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.state = Closing
	s.alive = false
	s.mu.Unlock()

	err := s.tr.Close(ctx)
	s.pending.FailAll(&jsonrpc.RPCError{Code: jsonrpc.CodeInternalError, Message: mcp.ErrClosed.Error()})

	handler.ElicitationRegistry.Release(s.owner)
	handler.HumanInTheLoopRegistry.Release(s.owner)

	s.setState(Closed)
	if err != nil {
		return mcp.ErrTransport.Withf("close: %v", err)
	}
	return nil
}

// Restart is Stop followed by Start. The session returns to Uninitialized
// between the two so Start's precondition is satisfied.
func (s *Session) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	s.setState(Uninitialized)
	return s.Start(ctx)
}

// Alive reports whether the session believes it can send and receive
// requests: Initialized state and a transport that still reports Alive.
func (s *Session) Alive() bool {
	s.mu.Lock()
	alive := s.alive && s.state == Initialized
	s.mu.Unlock()
	return alive && s.tr.Alive()
}

// State returns the current coordinator state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AgreedVersion returns the protocol version negotiated during Start, or
// the empty string if the session has not completed initialize.
func (s *Session) AgreedVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agreedVersion
}

// ServerInfo returns the server's self-reported name/version from the
// initialize result.
func (s *Session) ServerInfo() schema.ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// ServerCapabilities returns the capability set the server declared during
// initialize.
func (s *Session) ServerCapabilities() schema.ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverCaps
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - REQUEST/NOTIFY

// Request sends a JSON-RPC request and blocks for its response, up to
// timeout (the session default if zero). On timeout the pending entry is
// removed and a best-effort notifications/cancelled is sent.
func (s *Session) Request(ctx context.Context, method string, params any, timeout time.Duration) (*transport.Result, error) {
	if s.State() != Initialized {
		return nil, mcp.ErrInvalidState.With("session is not initialized")
	}
	if timeout <= 0 {
		timeout = s.opts.Timeout()
	}
	ctx, span := s.tracer.Start(ctx, "session.request")
	defer span.End()
	return s.doRequest(ctx, method, params, timeout)
}

// Ping issues the MCP keepalive request.
func (s *Session) Ping(ctx context.Context) error {
	_, err := s.Request(ctx, schema.MethodPing, struct{}{}, 0)
	return err
}

// Notify sends a fire-and-forget JSON-RPC notification; it never expects
// or waits for a reply.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	env, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return mcp.ErrInvalidRequest.Withf("notify: %v", err)
	}
	data, err := jsonrpc.Encode(env)
	if err != nil {
		return mcp.ErrInvalidRequest.Withf("notify: %v", err)
	}
	if err := s.tr.Send(ctx, data); err != nil {
		return mcp.ErrTransport.Withf("notify: %v", err)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - REQUEST

func (s *Session) doRequest(ctx context.Context, method string, params any, timeout time.Duration) (*transport.Result, error) {
	id := s.nextID.Add(1)
	key := idKey(id)

	mailbox := s.pending.Register(key, timeout)

	env, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		s.pending.Cancel(key, &jsonrpc.RPCError{Code: jsonrpc.CodeInvalidParams, Message: err.Error()})
		return nil, mcp.ErrInvalidRequest.Withf("request: %v", err)
	}
	data, err := jsonrpc.Encode(env)
	if err != nil {
		s.pending.Cancel(key, &jsonrpc.RPCError{Code: jsonrpc.CodeInvalidParams, Message: err.Error()})
		return nil, mcp.ErrInvalidRequest.Withf("request: %v", err)
	}

	if err := s.tr.Send(ctx, data); err != nil {
		s.pending.Cancel(key, &jsonrpc.RPCError{Code: jsonrpc.CodeInternalError, Message: err.Error()})
		return nil, mcp.ErrTransport.Withf("request %s: %v", method, err)
	}

	select {
	case res, ok := <-mailbox:
		if !ok || res == nil {
			return nil, mcp.ErrClosed.With("request: mailbox closed without delivery")
		}
		if res.Err != nil && res.Err.Code == jsonrpc.CodeRequestTimeout {
			s.sendCancelled(context.Background(), id, "timeout")
			return nil, mcp.ErrTimeout.Withf("request %s (id %d)", method, id)
		}
		return res, nil
	case <-ctx.Done():
		s.pending.Cancel(key, &jsonrpc.RPCError{Code: jsonrpc.CodeInternalError, Message: ctx.Err().Error()})
		s.sendCancelled(context.Background(), id, "cancelled")
		return nil, ctx.Err()
	}
}

// sendCancelled writes a best-effort notifications/cancelled hint to the
// server. Failures are logged, never returned - this is advisory only.
func (s *Session) sendCancelled(ctx context.Context, requestID any, reason string) {
	payload := schema.NotificationCancelled{RequestID: requestID, Reason: reason}
	if err := s.Notify(ctx, schema.NotifyCancelled, payload); err != nil {
		s.logWarn(ctx, "session: failed to send notifications/cancelled for %v: %v", requestID, err)
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - INBOUND DISPATCH

// onFrame is the InboundFunc passed to the transport. It decodes,
// validates and classifies the frame, then routes it.
func (s *Session) onFrame(f transport.Frame) {
	ctx := context.Background()

	env, err := jsonrpc.Decode(f.Data)
	if err != nil {
		s.logWarn(ctx, "session: parse error decoding inbound frame: %v", err)
		s.writeError(ctx, nil, jsonrpc.CodeParseError, "parse error")
		return
	}
	if err := jsonrpc.Validate(env); err != nil {
		s.logWarn(ctx, "session: invalid envelope: %v", err)
		if env.HasID() {
			s.writeError(ctx, env.ID, jsonrpc.CodeInvalidRequest, err.Error())
		}
		return
	}

	switch jsonrpc.Classify(env) {
	case jsonrpc.SuccessResponse, jsonrpc.ErrorResponse:
		s.pending.Deliver(idKey(env.ID), transport.FromEnvelope(env))
	case jsonrpc.Notification:
		s.dispatchNotification(ctx, env)
	case jsonrpc.Request:
		s.dispatchRequest(ctx, env)
	default:
		s.logWarn(ctx, "session: unclassifiable envelope ignored")
	}
}

func (s *Session) dispatchNotification(ctx context.Context, env *jsonrpc.Envelope) {
	switch env.Method {
	case schema.NotifyProgress:
		var n schema.NotificationProgress
		if err := json.Unmarshal(env.Params, &n); err == nil {
			s.mu.Lock()
			observers := append([]progressFunc(nil), s.progressObservers...)
			s.mu.Unlock()
			for _, fn := range observers {
				fn(n)
			}
		}
	case schema.NotifyMessage:
		var n schema.NotificationMessage
		if err := json.Unmarshal(env.Params, &n); err == nil {
			s.mu.Lock()
			observers := append([]loggingFunc(nil), s.loggingObservers...)
			s.mu.Unlock()
			for _, fn := range observers {
				fn(n)
			}
		}
	case schema.NotifyCancelled:
		var n schema.NotificationCancelled
		if err := json.Unmarshal(env.Params, &n); err == nil {
			key := fmt.Sprintf("%s:%v", s.owner, n.RequestID)
			handler.ElicitationRegistry.Cancel(key, cancelReason(n.Reason))
			handler.HumanInTheLoopRegistry.Cancel(key, cancelReason(n.Reason))
		}
	case schema.NotifyResourceUpdated, schema.NotifyResourceListChanged,
		schema.NotifyToolListChanged, schema.NotifyPromptListChanged:
		s.mu.Lock()
		fns := append([]listChangedFunc(nil), s.listChangedFns...)
		s.mu.Unlock()
		for _, fn := range fns {
			fn(env.Method)
		}
	default:
		s.logDebug(ctx, "session: unhandled notification %s", env.Method)
	}
}

func cancelReason(reason string) string {
	if reason == "" {
		return "cancelled by peer"
	}
	return reason
}

func (s *Session) dispatchRequest(ctx context.Context, env *jsonrpc.Envelope) {
	switch env.Method {
	case schema.MethodCreateMessage:
		s.dispatchSampling(ctx, env)
	case schema.MethodElicit:
		s.dispatchElicitation(ctx, env)
	case schema.MethodListRoots:
		s.dispatchRoots(ctx, env)
	default:
		s.mu.Lock()
		rt, ok := s.customHandlers[env.Method]
		s.mu.Unlock()
		if !ok {
			s.writeError(ctx, env.ID, jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", env.Method))
			return
		}
		result := rt.Run(ctx, json.RawMessage(env.Params))
		s.writeResult(ctx, env.ID, result)
	}
}

func (s *Session) writeError(ctx context.Context, id any, code int, message string) {
	env := jsonrpc.NewErrorResponse(id, code, message, nil)
	data, err := jsonrpc.Encode(env)
	if err != nil {
		s.logWarn(ctx, "session: failed to encode error response: %v", err)
		return
	}
	if err := s.tr.Send(ctx, data); err != nil {
		s.logWarn(ctx, "session: failed to write error response: %v", err)
	}
}

func (s *Session) writeSuccess(ctx context.Context, id any, result any) {
	env, err := jsonrpc.NewSuccessResponse(id, result)
	if err != nil {
		s.logWarn(ctx, "session: failed to encode success response: %v", err)
		return
	}
	data, err := jsonrpc.Encode(env)
	if err != nil {
		s.logWarn(ctx, "session: failed to encode success response: %v", err)
		return
	}
	if err := s.tr.Send(ctx, data); err != nil {
		s.logWarn(ctx, "session: failed to write success response: %v", err)
	}
}

func (s *Session) onFatalTransport(err error) {
	ctx := context.Background()
	s.logWarn(ctx, "session: transport reported fatal error: %v", err)
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
	s.pending.FailAll(&jsonrpc.RPCError{Code: jsonrpc.CodeInternalError, Message: mcp.ErrTransport.Withf("%v", err).Error()})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - STATE

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
}

func (s *Session) clientCapabilities() schema.ClientCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	var caps schema.ClientCapabilities
	if s.samplingRuntime != nil {
		caps.Sampling = map[string]any{}
	}
	if s.elicitationRuntime != nil {
		caps.Elicitation = map[string]any{}
	}
	if s.rootsFn != nil {
		caps.Roots = &schema.RootsCapability{ListChanged: s.rootsListChanged}
	}
	return caps
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - LOGGING

func (s *Session) logInfo(ctx context.Context, format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(ctx, format, args...)
	}
}

func (s *Session) logWarn(ctx context.Context, format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(ctx, format, args...)
	}
}

func (s *Session) logDebug(ctx context.Context, format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(ctx, format, args...)
	}
}
