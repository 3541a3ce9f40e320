package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoaderSuccessWithDefaults(t *testing.T) {
	file := writeTempConfig(t, `
upstream:
  endpoint: http://localhost:9000/rpc
server:
  authToken: hunter2
`)

	loader := NewLoader(zap.NewNop())
	cfg, err := loader.Load(context.Background(), file)
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9000/rpc", cfg.Upstream.Endpoint)
	require.Equal(t, time.Duration(domain.DefaultUpstreamTimeoutSeconds)*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, time.Duration(domain.DefaultHealthTimeoutSeconds)*time.Second, cfg.Upstream.HealthTimeout)
	require.Equal(t, domain.DefaultMaxReconnectAttempts, cfg.Upstream.MaxReconnectAttempts)
	require.EqualValues(t, domain.DefaultMaxResponseBytes, cfg.Upstream.MaxResponseBytes)
	require.Equal(t, domain.DefaultListenAddress, cfg.Server.ListenAddress)
	require.Equal(t, "hunter2", cfg.Server.AuthToken)
	require.Equal(t, domain.DefaultSpecTitle, cfg.Spec.Title)
	require.Equal(t, time.Duration(domain.DefaultSpecTTLSeconds)*time.Second, cfg.Spec.TTL)
	require.Equal(t, domain.DefaultValidationMode, cfg.Validation.Mode)
}

func TestLoaderFullConfig(t *testing.T) {
	file := writeTempConfig(t, `
upstream:
  endpoint: https://mcp.internal:8443/rpc
  headers:
    X-Api-Key: abc123
  timeoutSeconds: 10
  healthTimeoutSeconds: 2
  maxReconnectAttempts: 7
  reconnectBaseSeconds: 2
  reconnectMaxSeconds: 60
server:
  listenAddress: 127.0.0.1:9090
  authToken: hunter2
  shutdownTimeoutSeconds: 15
spec:
  title: Internal Tools
  version: 2.1.0
  serverURL: https://gateway.internal
  ttlSeconds: 60
  refreshSeconds: 30
validation:
  mode: strict
`)

	loader := NewLoader(zap.NewNop())
	cfg, err := loader.Load(context.Background(), file)
	require.NoError(t, err)

	require.Equal(t, map[string]string{"X-Api-Key": "abc123"}, cfg.Upstream.Headers)
	require.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, 2*time.Second, cfg.Upstream.HealthTimeout)
	require.Equal(t, 7, cfg.Upstream.MaxReconnectAttempts)
	require.Equal(t, 2*time.Second, cfg.Upstream.ReconnectBase)
	require.Equal(t, time.Minute, cfg.Upstream.ReconnectMax)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.ListenAddress)
	require.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, "Internal Tools", cfg.Spec.Title)
	require.Equal(t, "2.1.0", cfg.Spec.Version)
	require.Equal(t, "https://gateway.internal", cfg.Spec.ServerURL)
	require.Equal(t, time.Minute, cfg.Spec.TTL)
	require.Equal(t, 30*time.Second, cfg.Spec.RefreshPeriod)
	require.Equal(t, domain.ValidationStrict, cfg.Validation.Mode)
}

func TestLoaderEnvExpansion(t *testing.T) {
	t.Setenv("GATEWAY_TOKEN", "from-env")
	file := writeTempConfig(t, `
upstream:
  endpoint: http://localhost:9000/rpc
server:
  authToken: ${GATEWAY_TOKEN}
`)

	loader := NewLoader(zap.NewNop())
	cfg, err := loader.Load(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Server.AuthToken)
}

func TestLoaderMissingEndpoint(t *testing.T) {
	file := writeTempConfig(t, `
server:
  authToken: hunter2
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), file)
	require.Error(t, err)
	require.Contains(t, err.Error(), "upstream.endpoint")
}

func TestLoaderInvalidEndpointURL(t *testing.T) {
	file := writeTempConfig(t, `
upstream:
  endpoint: "not a url"
server:
  authToken: hunter2
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), file)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a valid URL")
}

func TestLoaderMissingAuthToken(t *testing.T) {
	file := writeTempConfig(t, `
upstream:
  endpoint: http://localhost:9000/rpc
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), file)
	require.Error(t, err)
	require.Contains(t, err.Error(), "server.authToken")
}

func TestLoaderInvalidValidationMode(t *testing.T) {
	file := writeTempConfig(t, `
upstream:
  endpoint: http://localhost:9000/rpc
server:
  authToken: hunter2
validation:
  mode: lenient
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), file)
	require.Error(t, err)
	require.Contains(t, err.Error(), "validation.mode")
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	_, err = loader.Load(context.Background(), "")
	require.Error(t, err)
}
