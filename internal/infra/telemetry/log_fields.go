package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldTool       = "tool"
	FieldState      = "state"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
)

const (
	EventInvoke           = "invoke"
	EventInvokeError      = "invoke_error"
	EventReconnect        = "reconnect"
	EventRefresh          = "registry_refresh"
	EventSpecRefresh      = "spec_refresh"
	EventUnauthorized     = "unauthorized"
	EventUpstreamDegraded = "upstream_degraded"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func StateField(state string) zap.Field {
	return zap.String(FieldState, state)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}
