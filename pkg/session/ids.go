package session

import (
	"encoding/json"
	"fmt"
)

// idKey normalizes a JSON-RPC id into a comparable string key. Request ids
// minted by this package are always int64; ids echoed back by a server
// arrive after a JSON round-trip as float64, so both must normalize to the
// same key. String ids (rare on this side, but legal per JSON-RPC 2.0)
// pass through with a disjoint prefix so a numeric id never collides with
// a string id that happens to look the same.
func idKey(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + t
	case int:
		return fmt.Sprintf("n:%d", t)
	case int64:
		return fmt.Sprintf("n:%d", t)
	case float64:
		return fmt.Sprintf("n:%d", int64(t))
	case float32:
		return fmt.Sprintf("n:%d", int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return fmt.Sprintf("n:%d", n)
		}
		return "x:" + t.String()
	default:
		return fmt.Sprintf("x:%v", t)
	}
}
