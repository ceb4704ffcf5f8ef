// Package schema defines the MCP wire types exchanged over the jsonrpc
// envelope, and the entities the OAuth subsystem persists.
package schema

import "encoding/json"

////////////////////////////////////////////////////////////////////////////
// METHOD NAMES

const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"

	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	MethodListResources          = "resources/list"
	MethodReadResource           = "resources/read"
	MethodSubscribeResource      = "resources/subscribe"
	MethodUnsubscribeResource    = "resources/unsubscribe"
	MethodListResourceTemplates  = "resources/templates/list"

	MethodListPrompts = "prompts/list"
	MethodGetPrompt   = "prompts/get"

	MethodComplete    = "completion/complete"
	MethodSetLogLevel = "logging/setLevel"

	MethodCreateMessage = "sampling/createMessage"
	MethodElicit        = "elicitation/create"
	MethodListRoots     = "roots/list"

	NotifyProgress            = "notifications/progress"
	NotifyMessage              = "notifications/message"
	NotifyResourceUpdated      = "notifications/resources/updated"
	NotifyResourceListChanged  = "notifications/resources/list_changed"
	NotifyToolListChanged      = "notifications/tools/list_changed"
	NotifyPromptListChanged    = "notifications/prompts/list_changed"
	NotifyCancelled            = "notifications/cancelled"

	MethodListTasks   = "tasks/list"
	MethodGetTask     = "tasks/get"
	MethodTaskResult  = "tasks/result"
	MethodCancelTask  = "tasks/cancel"
)

////////////////////////////////////////////////////////////////////////////
// INITIALIZE

// ClientInfo identifies the client in the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities advertises exactly the server-facing features the
// client can honor; each field is present only when the corresponding
// handler or observer is registered.
type ClientCapabilities struct {
	Sampling    map[string]any `json:"sampling,omitempty"`
	Roots       *RootsCapability `json:"roots,omitempty"`
	Elicitation map[string]any `json:"elicitation,omitempty"`
}

// RootsCapability signals whether the client will emit
// notifications/roots/list_changed when its root set changes.
type RootsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerCapabilities is the set of features a server declared in its
// InitializeResult.
type ServerCapabilities struct {
	Tools       map[string]any `json:"tools,omitempty"`
	Resources   map[string]any `json:"resources,omitempty"`
	Prompts     map[string]any `json:"prompts,omitempty"`
	Completions map[string]any `json:"completions,omitempty"`
	Logging     map[string]any `json:"logging,omitempty"`
}

// RequestInitialize is the params of the initialize request.
type RequestInitialize struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

// ResponseInitialize is the result of a successful initialize request.
type ResponseInitialize struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

////////////////////////////////////////////////////////////////////////////
// PAGINATION

// RequestList is the params shape shared by every tools/resources/prompts
// list method.
type RequestList struct {
	Cursor string `json:"cursor,omitempty"`
}

////////////////////////////////////////////////////////////////////////////
// TOOLS

// Tool describes a single callable tool advertised by the server.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// ResponseListTools is the result of tools/list.
type ResponseListTools struct {
	Tools      []*Tool `json:"tools"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// RequestToolCall is the params of tools/call.
type RequestToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is a single piece of tool-call or prompt content.
type Content struct {
	Type     string `json:"type"` // "text", "image", "audio", "resource_link", "resource"
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
	Name     string `json:"name,omitempty"`
	Resource any    `json:"resource,omitempty"`
}

// ResponseToolCall is the result of tools/call.
type ResponseToolCall struct {
	Content []*Content `json:"content"`
	IsError bool       `json:"isError,omitempty"`
}

////////////////////////////////////////////////////////////////////////////
// PROMPTS

// Prompt describes a single prompt template advertised by the server.
type Prompt struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Arguments   []*PromptArgument        `json:"arguments,omitempty"`
}

// PromptArgument describes one templated argument a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ResponseListPrompts is the result of prompts/list.
type ResponseListPrompts struct {
	Prompts    []*Prompt `json:"prompts"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// RequestGetPrompt is the params of prompts/get.
type RequestGetPrompt struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// PromptMessage is a single message in a rendered prompt.
type PromptMessage struct {
	Role    string   `json:"role"`
	Content *Content `json:"content"`
}

// ResponseGetPrompt is the result of prompts/get.
type ResponseGetPrompt struct {
	Description string           `json:"description,omitempty"`
	Messages    []*PromptMessage `json:"messages"`
}

////////////////////////////////////////////////////////////////////////////
// RESOURCES

// Resource describes a single resource advertised by the server.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResponseListResources is the result of resources/list.
type ResponseListResources struct {
	Resources  []*Resource `json:"resources"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// RequestReadResource is the params of resources/read.
type RequestReadResource struct {
	URI string `json:"uri"`
}

// ResponseReadResource is the result of resources/read.
type ResponseReadResource struct {
	Contents []*Content `json:"contents"`
}

// RequestResourceSubscription is the params shared by resources/subscribe
// and resources/unsubscribe.
type RequestResourceSubscription struct {
	URI string `json:"uri"`
}

////////////////////////////////////////////////////////////////////////////
// SAMPLING (server -> client)

// RequestCreateMessage is the params of sampling/createMessage.
type RequestCreateMessage struct {
	Messages         []*SamplingMessage `json:"messages"`
	SystemPrompt     string             `json:"systemPrompt,omitempty"`
	MaxTokens        int                `json:"maxTokens,omitempty"`
	ModelPreferences any                `json:"modelPreferences,omitempty"`
}

// SamplingMessage is one message in a sampling request.
type SamplingMessage struct {
	Role    string   `json:"role"`
	Content *Content `json:"content"`
}

// ResponseCreateMessage is the accepted reply to sampling/createMessage.
type ResponseCreateMessage struct {
	Role    string   `json:"role"`
	Content *Content `json:"content"`
	Model   string   `json:"model,omitempty"`
}

////////////////////////////////////////////////////////////////////////////
// ELICITATION (server -> client)

// RequestElicit is the params of elicitation/create.
type RequestElicit struct {
	Message         string `json:"message"`
	RequestedSchema any    `json:"requestedSchema"`
}

// ResponseElicit is the reply to elicitation/create.
type ResponseElicit struct {
	Action   string `json:"action"` // "accept", "reject", "cancel"
	Response any    `json:"response,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

////////////////////////////////////////////////////////////////////////////
// ROOTS (server -> client)

// Root is a single filesystem or URI root the client exposes.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// ResponseListRoots is the reply to roots/list.
type ResponseListRoots struct {
	Roots []*Root `json:"roots"`
}

////////////////////////////////////////////////////////////////////////////
// NOTIFICATIONS

// NotificationProgress is the payload of notifications/progress.
type NotificationProgress struct {
	ProgressToken any     `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// NotificationMessage is the payload of notifications/message (logging).
type NotificationMessage struct {
	Level  string `json:"level"`
	Logger string `json:"logger,omitempty"`
	Data   any    `json:"data"`
}

// NotificationCancelled is the payload of notifications/cancelled.
type NotificationCancelled struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// RequestSetLogLevel is the params of logging/setLevel.
type RequestSetLogLevel struct {
	Level string `json:"level"`
}
