package mcp

import (
	"encoding/json"
	"time"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// A generic option type, applied when constructing a session, transport or
// OAuth provider.
type Opt func(*Opts) error

// Opts is the bag of options collected from a set of Opt values.
type Opts struct {
	clientName      string
	clientVersion   string
	protocolVersion string
	timeout         time.Duration
	debug           bool
	options         map[string]any // Additional free-form options
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// ApplyOpts returns a structure of options with sensible defaults applied
// before the supplied options are evaluated.
func ApplyOpts(opts ...Opt) (*Opts, error) {
	o := new(Opts)
	o.clientName = "go-mcp"
	o.clientVersion = "0.0.0"
	o.timeout = 30 * time.Second
	o.options = make(map[string]any)
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (o Opts) MarshalJSON() ([]byte, error) {
	var j struct {
		ClientName      string         `json:"client_name"`
		ClientVersion   string         `json:"client_version"`
		ProtocolVersion string         `json:"protocol_version,omitempty"`
		Timeout         time.Duration  `json:"timeout"`
		Debug           bool           `json:"debug,omitempty"`
		Options         map[string]any `json:"options,omitempty"`
	}
	j.ClientName = o.clientName
	j.ClientVersion = o.clientVersion
	j.ProtocolVersion = o.protocolVersion
	j.Timeout = o.timeout
	j.Debug = o.debug
	j.Options = o.options
	return json.Marshal(j)
}

func (o Opts) String() string {
	data, err := json.Marshal(o)
	if err != nil {
		return err.Error()
	}
	return string(data)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - PROPERTIES

// ClientInfo returns the name and version advertised in the initialize
// handshake.
func (o *Opts) ClientInfo() (string, string) {
	return o.clientName, o.clientVersion
}

// ProtocolVersion returns the protocol version override, or the empty
// string if the negotiator should fall back to the default.
func (o *Opts) ProtocolVersion() string {
	return o.protocolVersion
}

// Timeout returns the default request timeout.
func (o *Opts) Timeout() time.Duration {
	return o.timeout
}

// Debug returns whether debug logging was requested.
func (o *Opts) Debug() bool {
	return o.debug
}

// Set an option value
func (o *Opts) Set(key string, value any) {
	o.options[key] = value
}

// Get an option value
func (o *Opts) Get(key string) any {
	if value, exists := o.options[key]; exists {
		return value
	}
	return nil
}

// Has an option value
func (o *Opts) Has(key string) bool {
	_, exists := o.options[key]
	return exists
}

// Get an option value as a string
func (o *Opts) GetString(key string) string {
	if value, exists := o.options[key]; exists {
		if v, ok := value.(string); ok {
			return v
		}
	}
	return ""
}

// Get an option value as a boolean
func (o *Opts) GetBool(key string) bool {
	if value, exists := o.options[key]; exists {
		if v, ok := value.(bool); ok {
			return v
		}
	}
	return false
}

// Get an option value as a duration
func (o *Opts) GetDuration(key string) time.Duration {
	if value, exists := o.options[key]; exists {
		if v, ok := value.(time.Duration); ok {
			return v
		}
	}
	return 0
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - SET OPTIONS

// WithClientInfo sets the name and version advertised in the initialize
// handshake's clientInfo field.
func WithClientInfo(name, version string) Opt {
	return func(o *Opts) error {
		if name == "" {
			return ErrBadParameter.With("client name must not be empty")
		}
		o.clientName = name
		o.clientVersion = version
		return nil
	}
}

// WithProtocolVersion overrides the protocol version the client proposes
// during initialize, instead of the default negotiated version.
func WithProtocolVersion(v string) Opt {
	return func(o *Opts) error {
		o.protocolVersion = v
		return nil
	}
}

// WithTimeout sets the default timeout for outbound requests.
func WithTimeout(d time.Duration) Opt {
	return func(o *Opts) error {
		if d <= 0 {
			return ErrBadParameter.With("timeout must be positive")
		}
		o.timeout = d
		return nil
	}
}

// WithDebug raises the session's log level to debug.
func WithDebug() Opt {
	return func(o *Opts) error {
		o.debug = true
		return nil
	}
}

// WithOption sets an arbitrary, transport- or provider-specific option.
func WithOption(key string, value any) Opt {
	return func(o *Opts) error {
		o.Set(key, value)
		return nil
	}
}
