package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

// Config describes the upstream JSON-RPC channel.
type Config struct {
	Endpoint             string
	Headers              map[string]string
	Timeout              time.Duration
	HealthTimeout        time.Duration
	MaxReconnectAttempts int
	ReconnectBase        time.Duration
	ReconnectMax         time.Duration
	MaxResponseBytes     int64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = time.Duration(domain.DefaultUpstreamTimeoutSeconds) * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = time.Duration(domain.DefaultHealthTimeoutSeconds) * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = domain.DefaultMaxReconnectAttempts
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Duration(domain.DefaultReconnectBaseSeconds) * time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = time.Duration(domain.DefaultReconnectMaxSeconds) * time.Second
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = domain.DefaultMaxResponseBytes
	}
	return c
}

// Client owns the single logical connection to the upstream peer.
//
// reconnectMu serializes the reconnect critical path so only one reconnect is
// in flight at a time; mu guards the small state snapshot and is never held
// across network I/O.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	metrics    domain.Metrics

	idSeq    atomic.Uint64
	requests atomic.Uint64
	recovers atomic.Uint64

	reconnectMu sync.Mutex

	mu       sync.Mutex
	state    domain.ConnectionState
	attempts int
	identity domain.ServerIdentity
	caps     domain.ServerCapabilities
}

func NewClient(cfg Config, logger *zap.Logger, metrics domain.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("upstream"),
		metrics:    metrics,
		state:      domain.StateDisconnected,
	}
}

// Initialize performs the handshake, discovers the initial tool list and runs
// a health check. An unhealthy peer at this point is a startup failure and is
// not retried.
func (c *Client) Initialize(ctx context.Context) error {
	if c.cfg.Endpoint == "" {
		return domain.E(domain.CodeInvalidArgument, "upstream.initialize", "endpoint is required", nil)
	}

	if err := c.handshake(ctx); err != nil {
		return domain.Wrap(domain.CodeUnavailable, "upstream.initialize", err)
	}

	tools, err := c.ListTools(ctx)
	if err != nil {
		return domain.Wrap(domain.CodeUnavailable, "upstream.initialize", err)
	}

	if !c.Healthy(ctx) {
		return domain.E(domain.CodeUnavailable, "upstream.initialize", "health check failed", domain.ErrUpstreamUnavailable)
	}

	c.logger.Info("upstream initialized",
		zap.String("server", c.Identity().Name),
		zap.String("protocolVersion", c.Identity().ProtocolVersion),
		zap.Int("tools", len(tools)),
	)
	return nil
}

// handshake performs the initialize exchange and records the peer identity.
// On success the state becomes Connected and the attempt counter resets.
func (c *Client) handshake(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": domain.DefaultProtocolVersion,
		"clientInfo": map[string]any{
			"name":    "toolgate",
			"version": "1.0.0",
		},
		"capabilities": map[string]any{},
	}
	result, protoErr, err := c.do(ctx, "", domain.MethodInitialize, params, c.cfg.Timeout)
	if err != nil {
		return err
	}
	if protoErr != nil {
		return domain.E(domain.CodeUnavailable, "upstream.handshake", protoErr.Message, protoErr)
	}

	var decoded struct {
		ProtocolVersion string                    `json:"protocolVersion"`
		Capabilities    domain.ServerCapabilities `json:"capabilities"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(result, &decoded); err != nil {
		return domain.Wrap(domain.CodeInternal, "upstream.handshake", err)
	}

	c.mu.Lock()
	c.identity = domain.ServerIdentity{
		Name:            decoded.ServerInfo.Name,
		Version:         decoded.ServerInfo.Version,
		ProtocolVersion: decoded.ProtocolVersion,
	}
	c.caps = decoded.Capabilities
	c.state = domain.StateConnected
	c.attempts = 0
	c.mu.Unlock()

	return nil
}

// Healthy probes liveness with a cheap upstream ping. It observes state but
// does not mutate it.
func (c *Client) Healthy(ctx context.Context) bool {
	_, protoErr, err := c.do(ctx, "", domain.MethodPing, map[string]any{}, c.cfg.HealthTimeout)
	return err == nil && protoErr == nil
}

// Reconnect re-establishes the channel after a liveness failure. Only one
// reconnect proceeds at a time; concurrent callers wait for the in-flight one
// and return quickly once it has recovered the channel. The attempt counter
// is bounded and resets on success; exceeding the bound is terminal.
func (c *Client) Reconnect(ctx context.Context) error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	c.mu.Lock()
	if c.state == domain.StateConnected {
		// An earlier caller already recovered the channel while we waited.
		c.mu.Unlock()
		return nil
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		return domain.E(domain.CodeUnavailable, "upstream.reconnect", "", domain.ErrReconnectExhausted)
	}
	c.state = domain.StateDegraded
	c.mu.Unlock()

	bo := newBackoff(c.cfg.ReconnectBase, c.cfg.ReconnectMax)

	for {
		c.mu.Lock()
		if c.attempts >= c.cfg.MaxReconnectAttempts {
			c.mu.Unlock()
			return domain.E(domain.CodeUnavailable, "upstream.reconnect", "", domain.ErrReconnectExhausted)
		}
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		err := c.handshake(ctx)
		if err == nil {
			c.recovers.Add(1)
			c.metrics.ObserveReconnect(true)
			c.logger.Info("upstream reconnected", zap.Int("attempt", attempt))
			return nil
		}

		c.metrics.ObserveReconnect(false)
		c.logger.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if ctx.Err() != nil {
			return domain.Wrap(domain.CodeCanceled, "upstream.reconnect", ctx.Err())
		}
		bo.Sleep(ctx)
	}
}

// Call dispatches one JSON-RPC request with the resilience policy: one
// reconnect when unhealthy, no retry on client errors, exactly one retry
// after a fresh health check on transient failures.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, *domain.ProtocolError, error) {
	return c.CallWithID(ctx, "", method, params)
}

// CallWithID is Call with a caller-supplied request id, letting the
// translator correlate the wire request with its envelope. An empty id gets
// a generated one.
func (c *Client) CallWithID(ctx context.Context, id, method string, params any) (json.RawMessage, *domain.ProtocolError, error) {
	if !c.Healthy(ctx) {
		if err := c.Reconnect(ctx); err != nil {
			return nil, nil, err
		}
	}

	result, protoErr, err := c.do(ctx, id, method, params, c.cfg.Timeout)
	if err == nil {
		return result, protoErr, nil
	}

	var domainErr *domain.Error
	if errors.As(err, &domainErr) && !domainErr.Retryable {
		return nil, nil, err
	}

	// Transient failure: re-check liveness, then retry exactly once.
	if !c.Healthy(ctx) {
		if rcErr := c.Reconnect(ctx); rcErr != nil {
			return nil, nil, rcErr
		}
	}
	result, protoErr, retryErr := c.do(ctx, id, method, params, c.cfg.Timeout)
	if retryErr != nil {
		return nil, nil, retryErr
	}
	return result, protoErr, nil
}

// do performs a single HTTP round trip. The returned error carries the
// Retryable flag that Call consults; a *ProtocolError is an application-level
// failure, not a transport one.
func (c *Client) do(ctx context.Context, reqID, method string, params any, timeout time.Duration) (json.RawMessage, *domain.ProtocolError, error) {
	c.requests.Add(1)

	if reqID == "" {
		reqID = fmt.Sprintf("tg-%d", c.idSeq.Add(1))
	}
	id, err := jsonrpc.MakeID(reqID)
	if err != nil {
		return nil, nil, domain.Wrap(domain.CodeInternal, "upstream.request", err)
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, nil, domain.Wrap(domain.CodeInternal, "upstream.request", err)
	}

	wire, err := jsonrpc.EncodeMessage(&jsonrpc.Request{
		ID:     id,
		Method: method,
		Params: rawParams,
	})
	if err != nil {
		return nil, nil, domain.Wrap(domain.CodeInternal, "upstream.request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(wire))
	if err != nil {
		return nil, nil, domain.Wrap(domain.CodeInternal, "upstream.request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveUpstreamRequest(method, "transport")
		c.markDegraded()
		code := domain.CodeUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			code = domain.CodeDeadlineExceeded
		}
		return nil, nil, &domain.Error{
			Code:      code,
			Op:        "upstream.request",
			Message:   err.Error(),
			Cause:     err,
			Retryable: true,
		}
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		c.metrics.ObserveUpstreamRequest(method, "transport")
		return nil, nil, &domain.Error{
			Code:      domain.CodeUnavailable,
			Op:        "upstream.request",
			Message:   err.Error(),
			Cause:     err,
			Retryable: true,
		}
	}

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		c.metrics.ObserveUpstreamRequest(method, "2xx")
	case httpResp.StatusCode >= 400 && httpResp.StatusCode < 500:
		c.metrics.ObserveUpstreamRequest(method, "4xx")
		code := domain.CodeInvalidArgument
		if httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden {
			code = domain.CodeUnauthenticated
		}
		return nil, nil, &domain.Error{
			Code:    code,
			Op:      "upstream.request",
			Message: fmt.Sprintf("upstream rejected request: %s", httpResp.Status),
			Meta:    map[string]string{"status": httpResp.Status, "body": truncate(body, 512)},
		}
	default:
		c.metrics.ObserveUpstreamRequest(method, "5xx")
		c.markDegraded()
		return nil, nil, &domain.Error{
			Code:      domain.CodeUnavailable,
			Op:        "upstream.request",
			Message:   fmt.Sprintf("upstream error: %s", httpResp.Status),
			Retryable: true,
			Meta:      map[string]string{"status": httpResp.Status},
		}
	}

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		return nil, nil, domain.Wrap(domain.CodeInternal, "upstream.decode", err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return nil, nil, domain.E(domain.CodeInternal, "upstream.decode", "upstream reply is not a response message", nil)
	}
	if resp.Error != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(resp.Error, &rpcErr) {
			return nil, &domain.ProtocolError{
				Code:    rpcErr.Code,
				Message: rpcErr.Message,
				Data:    rpcErr.Data,
			}, nil
		}
		return nil, &domain.ProtocolError{
			Code:    -32603,
			Message: resp.Error.Error(),
		}, nil
	}
	return resp.Result, nil, nil
}

func (c *Client) markDegraded() {
	c.mu.Lock()
	if c.state == domain.StateConnected {
		c.state = domain.StateDegraded
	}
	c.mu.Unlock()
}

// ListTools fetches the complete tool list, following pagination cursors.
func (c *Client) ListTools(ctx context.Context) ([]domain.ToolDefinition, error) {
	cursor := ""
	var combined []domain.ToolDefinition

	for {
		params := map[string]any{}
		if cursor != "" {
			params["cursor"] = cursor
		}
		result, protoErr, err := c.Call(ctx, domain.MethodListTools, params)
		if err != nil {
			return nil, err
		}
		if protoErr != nil {
			return nil, domain.E(domain.CodeUnavailable, "upstream.list_tools", protoErr.Message, protoErr)
		}

		var page struct {
			Tools      []domain.ToolDefinition `json:"tools"`
			NextCursor string                  `json:"nextCursor"`
		}
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, domain.Wrap(domain.CodeInternal, "upstream.list_tools", err)
		}
		combined = append(combined, page.Tools...)
		if page.NextCursor == "" {
			return combined, nil
		}
		cursor = page.NextCursor
	}
}

// ToolInfo returns the definition of one named tool.
func (c *Client) ToolInfo(ctx context.Context, name string) (domain.ToolDefinition, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return domain.ToolDefinition{}, err
	}
	for _, tool := range tools {
		if tool.Name == name {
			return tool, nil
		}
	}
	return domain.ToolDefinition{}, domain.E(domain.CodeNotFound, "upstream.tool_info", name, domain.ErrToolNotFound)
}

// Identity returns the peer identity captured during the handshake.
func (c *Client) Identity() domain.ServerIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Capabilities returns the capability snapshot from the handshake.
func (c *Client) Capabilities() domain.ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// State returns the current connection state.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of connection counters for diagnostics.
func (c *Client) Stats() domain.UpstreamStats {
	c.mu.Lock()
	state := c.state
	attempts := c.attempts
	c.mu.Unlock()
	return domain.UpstreamStats{
		State:             state,
		RequestsIssued:    c.requests.Load(),
		Reconnects:        c.recovers.Load(),
		ReconnectAttempts: attempts,
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
