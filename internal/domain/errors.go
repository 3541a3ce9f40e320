package domain

import "errors"

var (
	// ErrToolNotFound reports that no discovered tool matches the requested name.
	ErrToolNotFound = errors.New("tool not found")
	// ErrUnauthorized reports a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArguments reports that strict validation rejected the call arguments.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrUpstreamUnavailable reports that the upstream peer could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrReconnectExhausted reports that the reconnect attempt bound was exceeded.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrNotInitialized reports use of the upstream channel before Initialize.
	ErrNotInitialized = errors.New("upstream not initialized")
)
