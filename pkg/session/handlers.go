package session

import (
	"context"
	"encoding/json"
	"fmt"

	// Packages
	mcp "github.com/mutablelogic/go-mcp"
	handler "github.com/mutablelogic/go-mcp/pkg/handler"
	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	schema "github.com/mutablelogic/go-mcp/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - HANDLER REGISTRATION

// OnSampling registers the handler invoked for server-initiated
// sampling/createMessage requests. Registering one advertises the
// "sampling" client capability during the next Start.
func (s *Session) OnSampling(h handler.Handler, guards ...handler.Guard) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplingRuntime = &handler.Runtime{
		Handler: h, Guards: guards, Logger: s.logger, Kind: handler.KindSampling, Name: schema.MethodCreateMessage,
	}
	return s
}

// OnElicitation registers the handler invoked for server-initiated
// elicitation/create requests. Registering one advertises the
// "elicitation" client capability.
func (s *Session) OnElicitation(h handler.Handler, guards ...handler.Guard) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elicitationRuntime = &handler.Runtime{
		Handler: h, Guards: guards, Logger: s.logger, Kind: handler.KindElicitation, Name: schema.MethodElicit,
	}
	return s
}

// OnHumanInTheLoop registers the handler used by RequestApproval. Unlike
// sampling/elicitation it answers no wire method directly; it gates
// host-application actions (e.g. before honoring a tool call) without
// naming a wire method of its own.
func (s *Session) OnHumanInTheLoop(h handler.Handler, guards ...handler.Guard) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hitlRuntime = &handler.Runtime{
		Handler: h, Guards: guards, Logger: s.logger, Kind: handler.KindHumanInTheLoop, Name: "human_in_the_loop",
	}
	return s
}

// OnRoots registers the function answering server-initiated roots/list
// requests. listChanged advertises whether this client will later emit
// notifications/roots/list_changed.
func (s *Session) OnRoots(fn func(ctx context.Context) ([]*schema.Root, error), listChanged bool) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootsFn = fn
	s.rootsListChanged = listChanged
	return s
}

// OnProgress registers an observer for notifications/progress.
func (s *Session) OnProgress(fn func(schema.NotificationProgress)) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressObservers = append(s.progressObservers, fn)
	return s
}

// OnLogging registers an observer for notifications/message (the server's
// logging passthrough).
func (s *Session) OnLogging(fn func(schema.NotificationMessage)) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggingObservers = append(s.loggingObservers, fn)
	return s
}

// OnListChanged registers an observer fired for any of the
// notifications/{resources,tools,prompts}/list_changed and
// notifications/resources/updated notifications; fn receives the method
// name so one callback can fan out by kind if desired.
func (s *Session) OnListChanged(fn func(method string)) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listChangedFns = append(s.listChangedFns, fn)
	return s
}

// OnMethod registers a handler for an arbitrary server-initiated method
// beyond sampling/elicitation/roots, an extension point for servers that
// add bespoke S->C methods.
func (s *Session) OnMethod(method string, h handler.Handler, guards ...handler.Guard) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customHandlers[method] = &handler.Runtime{
		Handler: h, Guards: guards, Logger: s.logger, Name: method,
	}
	return s
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - HOST-DRIVEN APPROVAL

// RequestApproval runs the registered human-in-the-loop handler for a
// host-application-originated approval request, identified by id for
// deferred completion via handler.HumanInTheLoopRegistry.ForOwner(...).
func (s *Session) RequestApproval(ctx context.Context, id string, params any) (handler.Result, error) {
	s.mu.Lock()
	rt := s.hitlRuntime
	s.mu.Unlock()
	if rt == nil {
		return handler.Result{}, mcp.ErrUnsupportedFeature.With("no human-in-the-loop handler registered")
	}
	result := rt.Run(ctx, params)
	if result.Action == handler.ActionDefer && result.Async != nil {
		handler.HumanInTheLoopRegistry.ForOwner(s.owner).Store(id, &handler.Entry{Async: result.Async, Context: params})
	}
	return result, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - SAMPLING DISPATCH

func (s *Session) dispatchSampling(ctx context.Context, env *jsonrpc.Envelope) {
	s.mu.Lock()
	rt := s.samplingRuntime
	s.mu.Unlock()
	if rt == nil {
		s.writeError(ctx, env.ID, jsonrpc.CodeMethodNotFound, "no sampling handler registered")
		return
	}

	var req schema.RequestCreateMessage
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &req); err != nil {
			s.writeError(ctx, env.ID, jsonrpc.CodeInvalidParams, err.Error())
			return
		}
	}

	result := rt.Run(ctx, req)
	s.finishSampling(ctx, env.ID, result)
}

func (s *Session) finishSampling(ctx context.Context, id any, result handler.Result) {
	switch result.Action {
	case handler.ActionAccept:
		// result.Response is expected to be a *schema.ResponseCreateMessage
		// (or compatible struct); the handler built it, the coordinator just
		// writes it back with the original request id.
		s.writeSuccess(ctx, id, result.Response)
	case handler.ActionReject, handler.ActionCancel:
		s.writeSuccess(ctx, id, struct {
			Accepted bool   `json:"accepted"`
			Message  string `json:"message,omitempty"`
		}{Accepted: false, Message: result.Reason})
	case handler.ActionDefer:
		if result.Async == nil {
			s.writeError(ctx, id, jsonrpc.CodeInternalError, "handler deferred without an async response")
			return
		}
		key := idKey(id)
		s.mu.Lock()
		s.samplingPending[key] = result.Async
		s.mu.Unlock()
		result.Async.OnSettle(func(state handler.AsyncResponseState, data any, reason string) {
			s.mu.Lock()
			delete(s.samplingPending, key)
			s.mu.Unlock()
			s.finishSampling(context.Background(), id, settledSamplingResult(state, data, reason))
		})
	default:
		s.writeError(ctx, id, jsonrpc.CodeInternalError, "unsupported sampling action")
	}
}

func settledSamplingResult(state handler.AsyncResponseState, data any, reason string) handler.Result {
	switch state {
	case handler.AsyncCompleted:
		return handler.Accept(handler.KindSampling, data)
	case handler.AsyncTimedOut:
		return handler.Reject(handler.KindSampling, "timed out")
	default:
		return handler.Reject(handler.KindSampling, reason)
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - ELICITATION DISPATCH

func (s *Session) dispatchElicitation(ctx context.Context, env *jsonrpc.Envelope) {
	s.mu.Lock()
	rt := s.elicitationRuntime
	s.mu.Unlock()
	if rt == nil {
		s.writeError(ctx, env.ID, jsonrpc.CodeMethodNotFound, "no elicitation handler registered")
		return
	}

	var req schema.RequestElicit
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &req); err != nil {
			s.writeError(ctx, env.ID, jsonrpc.CodeInvalidParams, err.Error())
			return
		}
	}

	result := rt.Run(ctx, req)
	s.finishElicitation(ctx, env.ID, result, req.RequestedSchema)
}

func (s *Session) finishElicitation(ctx context.Context, id any, result handler.Result, requestedSchema any) {
	switch result.Action {
	case handler.ActionAccept:
		if requestedSchema != nil {
			if err := schema.ValidateAgainstSchema(requestedSchema, result.Response); err != nil {
				s.logWarn(ctx, "session: elicitation response failed schema validation: %v", err)
				s.writeSuccess(ctx, id, schema.ResponseElicit{Action: "reject", Reason: "response does not match requested schema"})
				return
			}
		}
		s.writeSuccess(ctx, id, schema.ResponseElicit{Action: "accept", Response: result.Response})
	case handler.ActionReject:
		s.writeSuccess(ctx, id, schema.ResponseElicit{Action: "reject", Reason: result.Reason})
	case handler.ActionCancel:
		s.writeSuccess(ctx, id, schema.ResponseElicit{Action: "cancel", Reason: result.Reason})
	case handler.ActionDefer:
		if result.Async == nil {
			s.writeError(ctx, id, jsonrpc.CodeInternalError, "handler deferred without an async response")
			return
		}
		key := fmt.Sprintf("%v", id)
		handler.ElicitationRegistry.ForOwner(s.owner).Store(key, &handler.Entry{Async: result.Async, Context: requestedSchema})
		result.Async.OnSettle(func(state handler.AsyncResponseState, data any, reason string) {
			if state == handler.AsyncTimedOut {
				s.sendCancelled(context.Background(), id, "timed out")
			}
			s.finishElicitation(context.Background(), id, settledElicitationResult(state, data, reason), requestedSchema)
		})
	default:
		s.writeError(ctx, id, jsonrpc.CodeInternalError, "unsupported elicitation action")
	}
}

func settledElicitationResult(state handler.AsyncResponseState, data any, reason string) handler.Result {
	switch state {
	case handler.AsyncCompleted:
		return handler.Accept(handler.KindElicitation, data)
	case handler.AsyncCancelled:
		return handler.Cancel(handler.KindElicitation, reason)
	case handler.AsyncTimedOut:
		return handler.Cancel(handler.KindElicitation, "timed out")
	default:
		return handler.Reject(handler.KindElicitation, reason)
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - ROOTS DISPATCH

func (s *Session) dispatchRoots(ctx context.Context, env *jsonrpc.Envelope) {
	s.mu.Lock()
	fn := s.rootsFn
	s.mu.Unlock()
	if fn == nil {
		s.writeError(ctx, env.ID, jsonrpc.CodeMethodNotFound, "no roots handler registered")
		return
	}
	roots, err := fn(ctx)
	if err != nil {
		s.writeError(ctx, env.ID, jsonrpc.CodeInternalError, err.Error())
		return
	}
	s.writeSuccess(ctx, env.ID, schema.ResponseListRoots{Roots: roots})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - GENERIC CUSTOM-METHOD RESULT SERIALIZATION

// writeResult serializes a handler.Result from a custom-method handler
// (registered via OnMethod). Accept and approve write Response as the
// success result and a completed deferred result writes its data; every
// other outcome (reject, deny, cancel, a timed-out or failed deferred
// result) is written as a JSON-RPC internal error carrying the reason.
// Unlike sampling, a rejection is not sent as a success result.
func (s *Session) writeResult(ctx context.Context, id any, result handler.Result) {
	switch result.Action {
	case handler.ActionAccept, handler.ActionApprove:
		s.writeSuccess(ctx, id, result.Response)
	case handler.ActionDefer:
		if result.Async == nil {
			s.writeError(ctx, id, jsonrpc.CodeInternalError, "handler deferred without an async response")
			return
		}
		result.Async.OnSettle(func(state handler.AsyncResponseState, data any, reason string) {
			switch state {
			case handler.AsyncCompleted:
				s.writeSuccess(context.Background(), id, data)
			case handler.AsyncTimedOut:
				s.sendCancelled(context.Background(), id, "timed out")
				s.writeError(context.Background(), id, jsonrpc.CodeInternalError, "timed out")
			default:
				s.writeError(context.Background(), id, jsonrpc.CodeInternalError, reason)
			}
		})
	default:
		s.writeError(ctx, id, jsonrpc.CodeInternalError, result.Reason)
	}
}
