package jsonrpc

import "encoding/json"

// Classify determines the Kind of a decoded envelope, independent of
// whether it is otherwise valid. Validate should be called first if the
// caller needs to reject malformed envelopes; Classify is best-effort and
// returns Invalid when it cannot determine a single kind.
func Classify(e *Envelope) Kind {
	if e == nil {
		return Invalid
	}
	switch {
	case e.hasMethod && e.hasID:
		return Request
	case e.hasMethod && !e.hasID:
		return Notification
	case !e.hasMethod && e.hasID && e.hasResult && !e.hasError:
		return SuccessResponse
	case !e.hasMethod && e.hasID && e.hasError && !e.hasResult:
		return ErrorResponse
	default:
		return Invalid
	}
}

// isParamsShape reports whether raw is absent, a JSON object or a JSON
// array, the only shapes request params may take.
func isParamsShape(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
