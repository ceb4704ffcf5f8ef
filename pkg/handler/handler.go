package handler

import (
	"context"
	"fmt"
	"time"

	// Packages
	logger "github.com/mutablelogic/go-server/pkg/logger"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Guard is run before a handler's Execute. It returns true to allow
// execution, or false and a reason to reject/deny the request without
// calling Execute; an empty reason is reported as "rejected by guard".
type Guard func(ctx context.Context, params any) (bool, string)

// Option declares a single named option a handler accepts, with a default
// value and whether it is required. Declared as static data on the handler
// type; missing required options are a construction-time error, checked
// by NewOptions.
type Option struct {
	Name     string
	Default  any
	Required bool
}

// Options is the set of Option declarations for one handler, plus the
// values actually supplied at construction time.
type Options struct {
	decls  []Option
	values map[string]any
}

// NewOptions builds an Options set from declarations and supplied values.
// It returns an error if a declared-required option has no value and no
// default.
func NewOptions(decls []Option, values map[string]any) (*Options, error) {
	o := &Options{decls: decls, values: make(map[string]any, len(values))}
	for k, v := range values {
		o.values[k] = v
	}
	for _, d := range decls {
		if _, ok := o.values[d.Name]; ok {
			continue
		}
		if d.Default != nil {
			o.values[d.Name] = d.Default
			continue
		}
		if d.Required {
			return nil, fmt.Errorf("handler: missing required option %q", d.Name)
		}
	}
	return o, nil
}

// Get returns the value configured for name, or nil.
func (o *Options) Get(name string) any {
	if o == nil {
		return nil
	}
	return o.values[name]
}

// Kind discriminates which HandlerResult variant a handler produces.
type Kind int

const (
	KindSampling Kind = iota
	KindElicitation
	KindHumanInTheLoop
)

// Action is the outcome a HandlerResult carries, independent of Kind.
type Action int

const (
	ActionAccept Action = iota
	ActionReject
	ActionCancel
	ActionDefer
	ActionApprove
	ActionDeny
)

// Result is the discriminated union every handler's Execute returns.
// Exactly one of Response/Reason/Async is meaningful, selected by Action.
type Result struct {
	Kind     Kind
	Action   Action
	Response any           // accepted sampling reply / elicited object
	Reason   string        // reject/deny/cancel reason
	Timeout  time.Duration // HumanInTheLoop Defer timeout hint
	Async    *AsyncResponse
}

// Accept builds a synchronous accept result.
func Accept(kind Kind, response any) Result {
	return Result{Kind: kind, Action: ActionAccept, Response: response}
}

// Reject builds a synchronous reject result.
func Reject(kind Kind, reason string) Result {
	return Result{Kind: kind, Action: ActionReject, Reason: reason}
}

// Cancel builds a synchronous cancel result (elicitation only).
func Cancel(kind Kind, reason string) Result {
	return Result{Kind: kind, Action: ActionCancel, Reason: reason}
}

// Approve builds a synchronous approval result (human-in-the-loop only).
func Approve() Result {
	return Result{Kind: KindHumanInTheLoop, Action: ActionApprove}
}

// Deny builds a synchronous denial result (human-in-the-loop only).
func Deny(reason string) Result {
	return Result{Kind: KindHumanInTheLoop, Action: ActionDeny, Reason: reason}
}

// Defer builds a deferred result backed by async, settled later through a
// Registry.
func Defer(kind Kind, async *AsyncResponse, timeout time.Duration) Result {
	return Result{Kind: kind, Action: ActionDefer, Async: async, Timeout: timeout}
}

// Handler is implemented by every server-initiated request responder
// (sampling, elicitation, roots, human-in-the-loop approval). Execute is
// invoked by the coordinator on the reader goroutine unless it returns a
// Defer result.
type Handler interface {
	Execute(ctx context.Context, params any) (Result, error)
}

// Func adapts a plain function to the Handler interface.
type Func func(ctx context.Context, params any) (Result, error)

func (f Func) Execute(ctx context.Context, params any) (Result, error) {
	return f(ctx, params)
}

///////////////////////////////////////////////////////////////////////////////
// RUNTIME

// Runtime wraps a Handler with the guard chain, lifecycle hooks and
// logging around every Execute call. It does not itself decide sync vs
// async - that is encoded in the Result the wrapped Handler returns.
type Runtime struct {
	Handler      Handler
	Guards       []Guard
	BeforeExecute func(ctx context.Context, params any)
	AfterExecute  func(ctx context.Context, params any, result Result, err error)
	Logger        *logger.Logger
	Kind          Kind
	Name          string // method name, used in log lines
}

// Run executes the guard chain, then the handler, with lifecycle hooks and
// logging, converting a panic or error from Execute into a reject/deny
// HandlerResult instead of propagating it.
func (r *Runtime) Run(ctx context.Context, params any) (result Result) {
	r.logDebug(ctx, "handler start: %s", r.Name)
	defer r.logDebug(ctx, "handler end: %s", r.Name)

	if r.BeforeExecute != nil {
		r.BeforeExecute(ctx, params)
	}

	var err error
	defer func() {
		if r.AfterExecute != nil {
			r.AfterExecute(ctx, params, result, err)
		}
	}()

	for _, g := range r.Guards {
		ok, reason := g(ctx, params)
		if !ok {
			if reason == "" {
				reason = "rejected by guard"
			}
			result = rejectFor(r.Kind, reason)
			return
		}
	}

	result, err = r.safeExecute(ctx, params)
	if err != nil {
		r.logError(ctx, "handler %s: %v", r.Name, err)
		result = rejectFor(r.Kind, "internal handler error")
	}
	return
}

func (r *Runtime) safeExecute(ctx context.Context, params any) (result Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler: panic: %v", p)
		}
	}()
	return r.Handler.Execute(ctx, params)
}

func rejectFor(kind Kind, reason string) Result {
	switch kind {
	case KindHumanInTheLoop:
		return Deny(reason)
	case KindElicitation:
		return Reject(KindElicitation, reason)
	default:
		return Reject(KindSampling, reason)
	}
}

func (r *Runtime) logDebug(ctx context.Context, format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(ctx, format, args...)
	}
}

func (r *Runtime) logError(ctx context.Context, format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(ctx, format, args...)
	}
}
