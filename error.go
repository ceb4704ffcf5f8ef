package mcp

import (
	"fmt"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	ErrSuccess Err = iota
	ErrNotFound
	ErrBadParameter
	ErrNotImplemented
	ErrConflict
	ErrInternalServerError
	ErrParse                      // malformed bytes on the wire (JSON-RPC -32700)
	ErrInvalidRequest             // well-formed JSON, invalid envelope (-32600)
	ErrMethodNotFound             // server-initiated request has no handler (-32601)
	ErrTransport                  // I/O, TLS, HTTP status >= 400
	ErrAuthenticationRequired     // 401 with no refresh possible
	ErrTimeout                    // caller deadline expired
	ErrUnsupportedProtocolVersion // negotiated version outside the supported set
	ErrUnsupportedFeature         // capability not negotiated
	ErrHandler                    // uncaught error inside a handler's execute()
	ErrClosed                     // operation attempted on a closed transport/session
	ErrInvalidState               // OAuth state mismatch
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Err is a lightweight error kind: a constant enum rather than a distinct
// error type per failure mode.
type Err int

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (e Err) Error() string {
	switch e {
	case ErrSuccess:
		return "success"
	case ErrNotFound:
		return "not found"
	case ErrBadParameter:
		return "bad parameter"
	case ErrNotImplemented:
		return "not implemented"
	case ErrConflict:
		return "conflict"
	case ErrInternalServerError:
		return "internal server error"
	case ErrParse:
		return "parse error"
	case ErrInvalidRequest:
		return "invalid request"
	case ErrMethodNotFound:
		return "method not found"
	case ErrTransport:
		return "transport error"
	case ErrAuthenticationRequired:
		return "authentication required"
	case ErrTimeout:
		return "timeout"
	case ErrUnsupportedProtocolVersion:
		return "unsupported protocol version"
	case ErrUnsupportedFeature:
		return "unsupported feature"
	case ErrHandler:
		return "handler error"
	case ErrClosed:
		return "closed"
	case ErrInvalidState:
		return "invalid state"
	}
	return fmt.Sprintf("error code %d", int(e))
}

func (e Err) With(args ...interface{}) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprint(args...))
}

func (e Err) Withf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}
