// Package transport defines the bidirectional carrier abstraction every
// concrete transport (stdio, SSE, streamable HTTP) implements, plus the
// pending-request table they all share.
package transport

import (
	"encoding/json"

	// Packages
	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
)

// Result is a normalized, immutable view over a response envelope: it
// carries the id, the method (for server-initiated requests only), and
// either a result or error payload.
type Result struct {
	ID     any
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Err    *jsonrpc.RPCError
}

// Matches reports whether r is the response to the outbound request with
// the given id.
func (r *Result) Matches(id any) bool {
	return idEqual(r.ID, id)
}

// FromEnvelope builds a Result from a decoded, already-validated envelope.
func FromEnvelope(e *jsonrpc.Envelope) *Result {
	return &Result{
		ID:     e.ID,
		Method: e.Method,
		Params: e.Params,
		Result: e.Result,
		Err:    e.Error,
	}
}

// idEqual compares JSON-RPC ids the way encoding/json decodes them: numbers
// always surface as float64, so an id sent as an int and echoed back as a
// float64 must still compare equal.
func idEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
