package mcp

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

// JsonRpcVersion is the only JSON-RPC envelope version this runtime speaks.
const JsonRpcVersion = "2.0"

// supportedVersions is the finite, ordered set of MCP protocol versions this
// runtime negotiates. Frozen at build time; negotiation outside this set is
// rejected.
var supportedVersions = []string{
	"2024-11-05",
	"2025-03-26",
	"2025-06-18",
}

// DefaultProtocolVersion is proposed by the client when no override is
// configured.
const DefaultProtocolVersion = "2025-06-18"

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// SupportedVersions returns the finite ordered set of protocol versions this
// runtime understands, oldest first.
func SupportedVersions() []string {
	out := make([]string, len(supportedVersions))
	copy(out, supportedVersions)
	return out
}

// LatestVersion returns the newest protocol version this runtime supports.
func LatestVersion() string {
	return supportedVersions[len(supportedVersions)-1]
}

// DefaultNegotiatedVersion returns the version the client proposes when the
// caller has not overridden it. It is the latest supported version.
func DefaultNegotiatedVersion() string {
	return DefaultProtocolVersion
}

// SupportedVersion reports whether v is in the supported set.
func SupportedVersion(v string) bool {
	for _, sv := range supportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}
