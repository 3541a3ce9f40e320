package domain

const (
	DefaultProtocolVersion         = "2025-06-18"
	DefaultListenAddress           = "0.0.0.0:8080"
	DefaultUpstreamTimeoutSeconds  = 30
	DefaultHealthTimeoutSeconds    = 5
	DefaultMaxReconnectAttempts    = 5
	DefaultReconnectBaseSeconds    = 1
	DefaultReconnectMaxSeconds     = 30
	DefaultSpecTTLSeconds          = 300
	DefaultSpecRefreshSeconds      = 300
	DefaultValidationMode          = ValidationAdvisory
	DefaultSpecTitle               = "Tool Gateway API"
	DefaultSpecVersion             = "1.0.0"
	DefaultShutdownTimeoutSeconds  = 5
	DefaultRegistryRefreshSeconds  = 0 // disabled unless configured
	DefaultMaxResponseBytes        = 16 * 1024 * 1024
	DefaultCorrelationPrefix       = "req_"
	MethodInitialize               = "initialize"
	MethodPing                     = "ping"
	MethodListTools                = "tools/list"
	MethodCallTool                 = "tools/call"
)

// ValidationMode selects how argument validation failures are handled.
type ValidationMode string

const (
	// ValidationAdvisory logs constraint violations and forwards the call.
	ValidationAdvisory ValidationMode = "advisory"
	// ValidationStrict rejects the call before dispatch.
	ValidationStrict ValidationMode = "strict"
)
