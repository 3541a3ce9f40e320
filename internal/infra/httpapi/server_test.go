package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
	"toolgate/internal/infra/openapi"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/translate"
	"toolgate/internal/infra/upstream"
)

const testToken = "secret-token"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type gatewayFixture struct {
	server    *Server
	toolCalls *atomic.Int64
}

// newGatewayFixture stands up the full gateway stack against a stubbed
// JSON-RPC upstream serving one create_task tool.
func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	toolCalls := &atomic.Int64{}
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		reply := func(result any) {
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  result,
			}))
		}

		switch req.Method {
		case domain.MethodInitialize:
			reply(map[string]any{
				"protocolVersion": domain.DefaultProtocolVersion,
				"capabilities":    map[string]any{"tools": map[string]any{}},
				"serverInfo":      map[string]any{"name": "stub", "version": "1.0"},
			})
		case domain.MethodPing:
			reply(map[string]any{})
		case domain.MethodListTools:
			reply(map[string]any{
				"tools": []map[string]any{{
					"name":        "create_task",
					"description": "Create a task",
					"inputSchema": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"title":    map[string]any{"type": "string"},
							"priority": map[string]any{"type": "integer"},
						},
						"required": []string{"title"},
					},
				}},
			})
		case domain.MethodCallTool:
			toolCalls.Add(1)
			var params domain.CallToolParams
			require.NoError(t, json.Unmarshal(req.Params, &params))
			reply(map[string]any{"created": params.Arguments["title"]})
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	t.Cleanup(stub.Close)

	client := upstream.NewClient(upstream.Config{
		Endpoint:      stub.URL,
		Timeout:       2 * time.Second,
		HealthTimeout: time.Second,
	}, nil, nil)
	require.NoError(t, client.Initialize(context.Background()))

	routes := router.NewRegistry(client, nil, nil)
	require.NoError(t, routes.Initialize(context.Background()))

	translator := translate.New(client, routes.Schema, translate.Options{})
	synthesizer := openapi.NewSynthesizer(client, openapi.Options{TTL: time.Minute})

	server := NewServer(client, routes, translator, synthesizer, Options{
		AuthToken: testToken,
	})
	return &gatewayFixture{server: server, toolCalls: toolCalls}
}

func (f *gatewayFixture) request(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointIsPublic(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "ok", payload["status"])
	require.Equal(t, string(domain.StateConnected), payload["upstreamStatus"])
	require.NotEmpty(t, payload["timestamp"])
}

func TestToolEndpointsRequireAuth(t *testing.T) {
	f := newGatewayFixture(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/tools"},
		{http.MethodPost, "/tools/create_task"},
		{http.MethodGet, "/tools/create_task/schema"},
		{http.MethodPost, "/tools:batch"},
	}
	for _, p := range paths {
		rec := f.request(t, p.method, p.path, "{}", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s without token", p.method, p.path)

		rec = f.request(t, p.method, p.path, "{}", "wrong-token")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s with bad token", p.method, p.path)
	}

	// Rejection happens before any upstream dispatch.
	require.Zero(t, f.toolCalls.Load())
}

func TestListTools(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodGet, "/tools", "", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			Count int `json:"count"`
			Tools []struct {
				Name     string `json:"name"`
				Endpoint string `json:"endpoint"`
				Method   string `json:"method"`
			} `json:"tools"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.Equal(t, 1, payload.Data.Count)
	require.Equal(t, "create_task", payload.Data.Tools[0].Name)
	require.Equal(t, "/tools/create_task", payload.Data.Tools[0].Endpoint)
	require.Equal(t, "POST", payload.Data.Tools[0].Method)
}

func TestInvokeTool(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodPost, "/tools/create_task", `{"title":"write report","priority":"3"}`, testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope domain.InvocationEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Equal(t, map[string]any{"created": "write report"}, envelope.Data)
	require.True(t, strings.HasPrefix(envelope.CorrelationID, domain.DefaultCorrelationPrefix))
	require.EqualValues(t, 1, f.toolCalls.Load())
}

func TestInvokeUnknownToolIs404(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodPost, "/tools/no_such_tool", `{}`, testToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, f.toolCalls.Load())
}

func TestInvokeRejectsMalformedBody(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodPost, "/tools/create_task", `[1,2]`, testToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.toolCalls.Load())
}

func TestInvokeEmptyBodyMeansNoArguments(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodPost, "/tools/create_task", "", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope domain.InvocationEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	// Advisory mode forwards despite the missing required field.
	require.True(t, envelope.Success)
}

func TestSchemaEndpoint(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodGet, "/tools/create_task/schema", "", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data struct {
			Name   string         `json:"name"`
			Schema map[string]any `json:"schema"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "create_task", payload.Data.Name)
	require.Equal(t, "object", payload.Data.Schema["type"])

	rec = f.request(t, http.MethodGet, "/tools/missing/schema", "", testToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchEndpoint(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodPost, "/tools:batch", `{
		"calls": [
			{"name": "create_task", "arguments": {"title": "one"}},
			{"name": "missing_tool"},
			{"name": ""}
		]
	}`, testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data struct {
			Count   int                          `json:"count"`
			Results []*domain.InvocationEnvelope `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, 2, payload.Data.Count)
	require.True(t, payload.Data.Results[0].Success)
	require.False(t, payload.Data.Results[1].Success)
}

func TestOpenAPIEndpoints(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodGet, "/openapi.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "3.0.3", doc["openapi"])
	require.Contains(t, doc["paths"].(map[string]any), "/tools/create_task")

	rec = f.request(t, http.MethodGet, "/openapi.yaml", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}

func TestRequestIDHeader(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(t, http.MethodGet, "/health", "", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	out := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(out, req)
	require.Equal(t, "caller-supplied", out.Header().Get("X-Request-ID"))
}
