// Package jsonrpc implements the JSON-RPC 2.0 envelope codec, validator and
// classifier shared by every transport.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

////////////////////////////////////////////////////////////////////////////
// TYPES

// Kind classifies an envelope.
type Kind int

const (
	Invalid Kind = iota
	Request
	Notification
	SuccessResponse
	ErrorResponse
)

func (k Kind) String() string {
	switch k {
	case Request:
		return "request"
	case Notification:
		return "notification"
	case SuccessResponse:
		return "success_response"
	case ErrorResponse:
		return "error_response"
	}
	return "invalid"
}

// Envelope is either a Request, Notification, SuccessResponse or
// ErrorResponse. Exactly one classification applies to any well-formed
// value. The presence flags (hasID, hasMethod, ...) record which members
// were present on the wire (or set by a constructor) since Go's zero values
// can't distinguish "absent" from "present but empty".
type Envelope struct {
	Version string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`

	hasID     bool
	hasMethod bool
	hasParams bool
	hasResult bool
	hasError  bool
}

// HasID reports whether the envelope carries an id member (which may still
// be JSON null).
func (e *Envelope) HasID() bool { return e.hasID }

// RPCError is the error member of an ErrorResponse envelope.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	hasCode bool
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// HasCode reports whether the error object carried a code member on the
// wire (or was built by a constructor). A decoded error with no code
// member has HasCode() false even though Code reads as its zero value 0,
// which is itself a legal JSON-RPC error code.
func (e *RPCError) HasCode() bool { return e.hasCode }

////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Version is the only JSON-RPC version this codec speaks.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeServerErrorMin/Max bound the reserved server-error range.
	CodeServerErrorMin = -32099
	CodeServerErrorMax = -32000

	// CodeRequestTimeout is a server-range code this runtime uses internally
	// to mark a pending request's mailbox delivery as a local timeout, so
	// callers can distinguish it from other locally-synthesized errors
	// without string-matching the message.
	CodeRequestTimeout = -32001
)

////////////////////////////////////////////////////////////////////////////
// CONSTRUCTORS

// NewRequest builds a request envelope with the given id, method and
// params. params may be nil.
func NewRequest(id any, method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version: Version, ID: id, Method: method, Params: raw,
		hasID: true, hasMethod: true, hasParams: raw != nil,
	}, nil
}

// NewNotification builds a notification envelope (no id).
func NewNotification(method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version: Version, Method: method, Params: raw,
		hasMethod: true, hasParams: raw != nil,
	}, nil
}

// NewSuccessResponse builds a success response envelope for id.
func NewSuccessResponse(id any, result any) (*Envelope, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Envelope{Version: Version, ID: id, Result: raw, hasID: true, hasResult: true}, nil
}

// NewErrorResponse builds an error response envelope for id. id may be nil
// for parse errors, per JSON-RPC 2.0.
func NewErrorResponse(id any, code int, message string, data any) *Envelope {
	return &Envelope{
		Version: Version, ID: id,
		Error: &RPCError{Code: code, Message: message, Data: data, hasCode: true},
		hasID: true, hasError: true,
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

////////////////////////////////////////////////////////////////////////////
// CODEC

// Encode serializes an envelope to its wire representation. An envelope
// that carries an id member with a nil value is written with "id":null.
func Encode(e *Envelope) ([]byte, error) {
	if e.hasID && e.ID == nil {
		type alias Envelope
		return json.Marshal(struct {
			ID json.RawMessage `json:"id"`
			alias
		}{json.RawMessage("null"), alias(*e)})
	}
	return json.Marshal(e)
}

// wireEnvelope mirrors Envelope but keeps every field as RawMessage so
// Decode can tell "absent" from "present but null" - information Validate
// needs and that Envelope's own omitempty tags erase on decode.
type wireEnvelope struct {
	Version json.RawMessage `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// wireRPCError mirrors RPCError, keeping Code as RawMessage so Decode can
// tell "code member absent" from "code member present and 0" - a present
// zero is a legal JSON-RPC error code.
type wireRPCError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Data    any             `json:"data,omitempty"`
}

// Decode parses raw bytes into an envelope. A decode failure (malformed
// JSON, or a top-level value that isn't a JSON object) is reported as an
// error; callers translate that into a CodeParseError response per
// JSON-RPC 2.0 - Decode itself has no transport to write that response to.
func Decode(data []byte) (*Envelope, error) {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, fmt.Errorf("jsonrpc: top-level value is not an object")
	}

	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	e := new(Envelope)
	if w.Version != nil {
		_ = json.Unmarshal(w.Version, &e.Version)
	}
	if w.ID != nil {
		var id any
		if err := json.Unmarshal(w.ID, &id); err != nil {
			return nil, err
		}
		e.ID = id
		e.hasID = true
	}
	if w.Method != nil {
		_ = json.Unmarshal(w.Method, &e.Method)
		e.hasMethod = true
	}
	if w.Params != nil {
		e.Params = w.Params
		e.hasParams = true
	}
	if w.Result != nil {
		e.Result = w.Result
		e.hasResult = true
	}
	if w.Error != nil {
		var wrerr wireRPCError
		if err := json.Unmarshal(w.Error, &wrerr); err != nil {
			return nil, err
		}
		rerr := RPCError{Message: wrerr.Message, Data: wrerr.Data}
		if wrerr.Code != nil {
			if err := json.Unmarshal(wrerr.Code, &rerr.Code); err != nil {
				return nil, err
			}
			rerr.hasCode = true
		}
		e.Error = &rerr
		e.hasError = true
	}
	return e, nil
}
