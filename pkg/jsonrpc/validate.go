package jsonrpc

import "fmt"

// Validate checks an envelope against the JSON-RPC 2.0 rules and returns a
// descriptive error, or nil if the envelope is well-formed. It does not
// itself classify the envelope's kind - call Classify after a successful
// Validate.
func Validate(e *Envelope) error {
	if e == nil {
		return fmt.Errorf("envelope is nil")
	}
	if e.Version != Version {
		return fmt.Errorf("jsonrpc field missing or not %q", Version)
	}
	if e.hasMethod && e.hasResult {
		return fmt.Errorf("envelope has both method and result")
	}
	if e.hasMethod && e.hasError {
		return fmt.Errorf("envelope has both method and error")
	}
	if e.hasResult && e.hasError {
		return fmt.Errorf("envelope has both result and error")
	}
	if !e.hasMethod && !e.hasResult && !e.hasError {
		return fmt.Errorf("envelope is neither a request, notification, nor response")
	}
	if (e.hasResult || e.hasError) && !e.hasID {
		return fmt.Errorf("response envelope missing id")
	}
	if e.hasMethod && e.Method == "" {
		return fmt.Errorf("method must not be empty")
	}
	if e.hasMethod && e.hasParams && !isParamsShape(e.Params) {
		return fmt.Errorf("params must be an object or array")
	}
	if e.hasError {
		if e.Error == nil {
			return fmt.Errorf("error member must be an object")
		}
		if !e.Error.HasCode() {
			return fmt.Errorf("error.code must be an integer")
		}
		if e.Error.Message == "" {
			return fmt.Errorf("error.message must be a non-empty string")
		}
	}
	switch e.ID.(type) {
	case nil, string, float64, int, int64:
		// ok - string or number, or null (reserved for parse-error responses)
	default:
		return fmt.Errorf("id must be a string, number or null")
	}
	return nil
}
