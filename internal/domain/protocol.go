package domain

import "encoding/json"

// ProtocolError captures JSON-RPC error details for propagation.
type ProtocolError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// ErrorKind is the symbolic classification of an upstream RPC error code.
type ErrorKind string

const (
	ErrorKindParseError       ErrorKind = "parse_error"
	ErrorKindInvalidRequest   ErrorKind = "invalid_request"
	ErrorKindMethodNotFound   ErrorKind = "method_not_found"
	ErrorKindInvalidParams    ErrorKind = "invalid_params"
	ErrorKindInternalError    ErrorKind = "internal_error"
	ErrorKindUnknown          ErrorKind = "unknown_error"
	ErrorKindTranslationError ErrorKind = "translation_error"
)

// KindForRPCCode maps a JSON-RPC error code to its symbolic kind. Codes outside
// the closed set degrade to ErrorKindUnknown; callers keep the numeric code in
// envelope metadata so nothing is lost.
func KindForRPCCode(code int64) ErrorKind {
	switch code {
	case -32700:
		return ErrorKindParseError
	case -32600:
		return ErrorKindInvalidRequest
	case -32601:
		return ErrorKindMethodNotFound
	case -32602:
		return ErrorKindInvalidParams
	case -32603:
		return ErrorKindInternalError
	default:
		return ErrorKindUnknown
	}
}

// ServerIdentity is the peer identity reported by the initialize handshake.
type ServerIdentity struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocolVersion"`
}

// ServerCapabilities mirrors the capability object from the handshake result.
// Only presence matters to the gateway; the nested shapes are opaque.
type ServerCapabilities struct {
	Tools     json.RawMessage `json:"tools,omitempty"`
	Resources json.RawMessage `json:"resources,omitempty"`
	Prompts   json.RawMessage `json:"prompts,omitempty"`
	Logging   json.RawMessage `json:"logging,omitempty"`
}

// CallToolParams is the params object of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
