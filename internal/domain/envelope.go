package domain

import "time"

// EnvelopeError describes a failed invocation in the outward envelope.
type EnvelopeError struct {
	Type    ErrorKind `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// EnvelopeMetadata carries per-call diagnostics on every envelope.
type EnvelopeMetadata struct {
	Timestamp         time.Time `json:"timestamp"`
	ProtocolVersion   string    `json:"protocolVersion,omitempty"`
	DurationMillis    int64     `json:"durationMs,omitempty"`
	UpstreamErrorCode *int64    `json:"upstreamErrorCode,omitempty"`
}

// InvocationEnvelope is the uniform response wrapper for one tool call.
// Constructed fresh per call, never shared across requests.
type InvocationEnvelope struct {
	Success       bool             `json:"success"`
	Data          any              `json:"data,omitempty"`
	Message       string           `json:"message,omitempty"`
	Error         *EnvelopeError   `json:"error,omitempty"`
	CorrelationID string           `json:"correlationId"`
	Metadata      EnvelopeMetadata `json:"metadata"`
}

// CallDescriptor is one entry of a batch invocation request.
type CallDescriptor struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}
